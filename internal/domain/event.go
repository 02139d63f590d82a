package domain

import "time"

// Bus channels used for pipeline events.
const (
	ChannelMarker  = "ch:marker"
	ChannelAuction = "ch:auction"
	ChannelBid     = "ch:bid"
	ChannelStatus  = "ch:status"

	// StreamAuctionResults is the durable stream of finalized auctions.
	StreamAuctionResults = "stream:auction_results"
)

// EventType names a pipeline event.
type EventType string

const (
	EventMarkerReceived   EventType = "marker.received"
	EventMarkerDropped    EventType = "marker.dropped"
	EventTriggerCreated   EventType = "trigger.created"
	EventTriggerRejected  EventType = "trigger.rejected"
	EventAuctionCreated   EventType = "auction.created"
	EventAuctionActivated EventType = "auction.activated"
	EventAuctionCompleted EventType = "auction.completed"
	EventAuctionCancelled EventType = "auction.cancelled"
	EventBidPlaced        EventType = "bid.placed"
	EventBidOutbid        EventType = "bid.outbid"
	EventBidWon           EventType = "bid.won"
	EventStatus           EventType = "status"
)

// Event is the JSON envelope published on the signal bus.
type Event struct {
	Type      EventType `json:"type"`
	AuctionID string    `json:"auction_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Time      time.Time `json:"time"`
}
