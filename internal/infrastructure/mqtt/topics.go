package mqtt

import "fmt"

// Topic prefixes for the xcvrd MQTT surface.
//
// All transceiver topics use the flat scheme: xcvrd/{category}/transceiver/{id}
const (
	// TopicPrefix is the base for all xcvrd topics.
	TopicPrefix = "xcvrd"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "xcvrd/system"

	// TopicPrefixCommand is the base for inbound command topics.
	TopicPrefixCommand = "xcvrd/command"
)

// Topics provides builders for xcvrd MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.TransceiverState(4)
//	// Returns: "xcvrd/state/transceiver/4"
type Topics struct{}

// =============================================================================
// Transceiver Topics
// =============================================================================

// TransceiverState returns the retained lifecycle state topic for a module.
//
// Example: xcvrd/state/transceiver/4
func (Topics) TransceiverState(id int) string {
	return fmt.Sprintf("%s/state/transceiver/%d", TopicPrefix, id)
}

// TransceiverEvent returns the topic for lifecycle events of a module.
// Events are transient and not retained.
//
// Example: xcvrd/event/transceiver/4
func (Topics) TransceiverEvent(id int) string {
	return fmt.Sprintf("%s/event/transceiver/%d", TopicPrefix, id)
}

// TransceiverRemediation returns the topic for remediation notifications.
//
// Example: xcvrd/remediation/transceiver/4
func (Topics) TransceiverRemediation(id int) string {
	return fmt.Sprintf("%s/remediation/transceiver/%d", TopicPrefix, id)
}

// =============================================================================
// Command Topics
// =============================================================================

// CommandPauseRemediation returns the topic for fleet-wide remediation
// pause commands. Payload: {"seconds": N}.
//
// Example: xcvrd/command/pause-remediation
func (Topics) CommandPauseRemediation() string {
	return fmt.Sprintf("%s/pause-remediation", TopicPrefixCommand)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: xcvrd/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllTransceiverStates returns a pattern matching all transceiver state topics.
//
// Pattern: xcvrd/state/transceiver/+
func (Topics) AllTransceiverStates() string {
	return fmt.Sprintf("%s/state/transceiver/+", TopicPrefix)
}

// AllTransceiverEvents returns a pattern matching all transceiver event topics.
//
// Pattern: xcvrd/event/transceiver/+
func (Topics) AllTransceiverEvents() string {
	return fmt.Sprintf("%s/event/transceiver/+", TopicPrefix)
}

// AllCommands returns a pattern matching all inbound command topics.
//
// Pattern: xcvrd/command/#
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/#", TopicPrefixCommand)
}

// AllTopics returns a pattern matching all xcvrd topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: xcvrd/#
func (Topics) AllTopics() string {
	return "xcvrd/#"
}
