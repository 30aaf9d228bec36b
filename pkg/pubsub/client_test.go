package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResourceName(t *testing.T) {
	assert.Equal(t, "projects/p1/topics/orders", resourceName("p1", "topics", " orders "))
	assert.Equal(t, "projects/other/subscriptions/f", resourceName("p1", "subscriptions", "projects/other/subscriptions/f"))
	assert.Equal(t, "projects/p1/topics/projects/x/subscriptions/y", resourceName("p1", "topics", "projects/x/subscriptions/y"))
	assert.Empty(t, resourceName("p1", "topics", ""))
}
