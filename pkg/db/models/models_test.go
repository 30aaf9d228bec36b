package models

import (
	"math"
	"testing"
)

func TestOrderComputedTotalUsesEffectiveQuantity(t *testing.T) {
	shopped := 1.5
	order := Order{
		DeliveryPrice: 5,
		Items: []OrderItem{
			{Price: 10, Quantity: 3},
			{Price: 4, Quantity: 2, ActualQuantity: &shopped},
		},
	}

	want := 5 + 10*3 + 4*1.5
	if got := order.ComputedTotal(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestOrderItemEffectiveQuantity(t *testing.T) {
	item := OrderItem{Quantity: 2}
	if item.EffectiveQuantity() != 2 {
		t.Fatalf("expected ordered quantity when not shopped")
	}
	zero := 0.0
	item.ActualQuantity = &zero
	if item.EffectiveQuantity() != 0 {
		t.Fatalf("expected shopped quantity to win even when zero")
	}
}
