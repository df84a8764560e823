package inventory_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/benchtrack/inventory/inventory"
	"github.com/stretchr/testify/assert"
)

func TestFeed_SubscribeAndUnsubscribe(t *testing.T) {
	feed := inventory.NewFeed()
	var a, b int32

	unsubA := feed.Subscribe(func(inventory.Change) { atomic.AddInt32(&a, 1) })
	feed.Subscribe(func(inventory.Change) { atomic.AddInt32(&b, 1) })
	assert.Equal(t, 2, feed.Len())

	c := inventory.NewChange(inventory.EntityProduct, inventory.OpCreate, time.Now(), inventory.NameKey("Gloves-M"))
	feed.Publish(c)

	unsubA()
	unsubA()
	feed.Publish(c)

	assert.Equal(t, int32(1), atomic.LoadInt32(&a))
	assert.Equal(t, int32(2), atomic.LoadInt32(&b))
	assert.Equal(t, 1, feed.Len())
}

func TestFeed_DeliversInOrder(t *testing.T) {
	feed := inventory.NewFeed()
	var got []string
	feed.Subscribe(func(inventory.Change) { got = append(got, "first") })
	feed.Subscribe(func(inventory.Change) { got = append(got, "second") })

	feed.Publish(inventory.NewChange(inventory.EntityConsumableLot, inventory.OpUpdate, time.Now()))
	assert.Equal(t, []string{"first", "second"}, got)
}
