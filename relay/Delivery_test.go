package relay

import (
	"testing"
	"time"
)

func TestDeliveryStatusHappyPath(t *testing.T) {
	d := NewDeliveryStatus()
	if d.State != DeliverySending {
		t.Fatalf("expected initial state sending")
	}
	d.MarkSent()
	if d.State != DeliverySent {
		t.Fatalf("expected state sent")
	}
	now := time.Now()
	d.MarkDelivered("bob", now)
	if d.State != DeliveryDelivered || d.DeliveredTo != "bob" {
		t.Fatalf("expected delivered state to bob")
	}
	d.MarkRead("bob", now.Add(time.Second))
	if d.State != DeliveryRead || d.ReadBy != "bob" {
		t.Fatalf("expected terminal read state")
	}
}

func TestDeliveryStatusReadIsSticky(t *testing.T) {
	d := NewDeliveryStatus()
	d.MarkRead("bob", time.Now())
	d.MarkDelivered("bob", time.Now())
	if d.State != DeliveryRead {
		t.Fatalf("expected read to remain terminal despite late delivered event")
	}
}

func TestDeliveryStatusPartialForChannel(t *testing.T) {
	d := NewDeliveryStatus()
	d.MarkPartiallyDelivered(3, 5)
	if d.State != DeliveryPartiallyDelivered || d.Reached != 3 || d.Total != 5 {
		t.Fatalf("expected partial delivery bookkeeping")
	}
}
