package bridge

// ShouldDrop reports whether an inbound message originated from an automated
// sender and must not be relayed. The bridge's own outbound posts are
// authored by its automated account on the destination platform; without
// this check they would be re-ingested as new inbound events and relayed
// forever. The decision depends only on SenderIsAutomated, which the
// normalizers derive from the event's sender-type field.
func ShouldDrop(msg *Message) bool {
	return msg != nil && msg.SenderIsAutomated
}
