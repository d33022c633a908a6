package topic

import (
	"fmt"
)

// Topic segments shared by the engine and the appliance agents. These are the
// wire contract of the order channel; changing them breaks deployed agents.
const (
	// SuffixOrder is the downstream order topic (engine -> appliance).
	// Structure: {root}/orders/{applianceID}
	SuffixOrder = "orders"

	// SuffixOrderResult is the upstream order outcome topic (appliance -> engine).
	// Structure: {root}/orders/result/{applianceID}
	SuffixOrderResult = "orders/result"

	// SuffixCheckin is the upstream appliance check-in topic (appliance -> engine).
	// Structure: {root}/checkin/{applianceID}
	SuffixCheckin = "checkin"
)

// Builder constructs the topic strings for a given root namespace
// (e.g. "warden/v1") so topic layout is defined in exactly one place.
type Builder struct {
	root string
}

// NewBuilder creates a Builder with the specified root namespace.
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Order returns the topic for sending an order to a specific appliance.
func (b *Builder) Order(applianceID string) string {
	return b.build(SuffixOrder, applianceID)
}

// OrderResult returns the topic an appliance publishes order outcomes on.
func (b *Builder) OrderResult(applianceID string) string {
	return b.build(SuffixOrderResult, applianceID)
}

// OrderResultWildcard returns the filter the engine subscribes to for all
// order outcomes: {root}/orders/result/+
func (b *Builder) OrderResultWildcard() string {
	return b.build(SuffixOrderResult, "+")
}

// Checkin returns the topic an appliance publishes check-ins on.
func (b *Builder) Checkin(applianceID string) string {
	return b.build(SuffixCheckin, applianceID)
}

// CheckinWildcard returns the filter the engine subscribes to for all
// check-ins: {root}/checkin/+
func (b *Builder) CheckinWildcard() string {
	return b.build(SuffixCheckin, "+")
}

// Shared prefixes a filter with an MQTT shared-subscription group so multiple
// engine replicas split the inbound stream.
func (b *Builder) Shared(group, filter string) string {
	return fmt.Sprintf("$share/%s/%s", group, filter)
}

func (b *Builder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}
