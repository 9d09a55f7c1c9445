package messenger

import "github.com/streadway/amqp"

type exchange struct {
	Name        string
	Type        string
	Durable     bool
	AutoDeleted bool
	Internal    bool
	NoWait      bool
	Arguments   amqp.Table
}

// listing events are routed by action, e.g. "listing.purchased"
var exchanges = map[Item]exchange{
	ListingEvents: {
		Name:        "opentrade.listing",
		Type:        "topic",
		Durable:     true,
		AutoDeleted: false,
		Internal:    false,
		NoWait:      false,
		Arguments:   nil,
	},
	Rejections: {
		Name:        "opentrade.rejection",
		Type:        "fanout",
		Durable:     true,
		AutoDeleted: false,
		Internal:    false,
		NoWait:      false,
		Arguments:   nil,
	},
}
