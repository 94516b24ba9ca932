package briefboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple deployments to safely coexist on a single Redis server.
//
// Key pattern: peerlens:{instance_name}:{entity}:{manuscript_id}
// Channel pattern: peerlens:{instance_name}:{event_type}_events

// BriefKey returns the Redis key for a manuscript's Brief.
// Pattern: peerlens:{instance_name}:brief:{manuscript_id}
func BriefKey(instanceName, manuscriptID string) string {
	return fmt.Sprintf("peerlens:%s:brief:%s", instanceName, manuscriptID)
}

// ValidationKey returns the Redis key for a manuscript's validation result.
// Pattern: peerlens:{instance_name}:validation:{manuscript_id}
func ValidationKey(instanceName, manuscriptID string) string {
	return fmt.Sprintf("peerlens:%s:validation:%s", instanceName, manuscriptID)
}

// ManuscriptsKey returns the Redis key for the set of manuscript IDs that
// have a published Brief.
// Pattern: peerlens:{instance_name}:manuscripts
func ManuscriptsKey(instanceName string) string {
	return fmt.Sprintf("peerlens:%s:manuscripts", instanceName)
}

// BriefEventsChannel returns the Pub/Sub channel name for Brief publication
// events.
// Pattern: peerlens:{instance_name}:brief_events
func BriefEventsChannel(instanceName string) string {
	return fmt.Sprintf("peerlens:%s:brief_events", instanceName)
}
