package order

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/your-org/marketplace-api/internal/domain/product"
)

type cartLine struct {
	cents    int64
	quantity int
	spare    int
}

func cartLinesGen() gopter.Gen {
	line := gopter.CombineGens(
		gen.Int64Range(0, 100000),
		gen.IntRange(1, 5),
		gen.IntRange(0, 10),
	).Map(func(v []interface{}) cartLine {
		return cartLine{cents: v[0].(int64), quantity: v[1].(int), spare: v[2].(int)}
	})
	return gen.IntRange(1, 5).FlatMap(func(n interface{}) gopter.Gen {
		return gen.SliceOfN(n.(int), line)
	}, reflect.TypeOf([]cartLine{}))
}

func propertyParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 30
	return params
}

func seedCart(f *fixture, lines []cartLine, stockFor func(i int, l cartLine) int) []*product.Product {
	products := make([]*product.Product, len(lines))
	for i, l := range lines {
		price := decimal.New(l.cents, -2).StringFixed(2)
		products[i] = f.product(fmt.Sprintf("P%d", i), price, stockFor(i, l))
		f.addToCart(buyer, products[i], l.quantity)
	}
	return products
}

func TestProperty_OrderConservesStockAndTotal(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("stock decreases by exactly the ordered quantity and the total matches the lines", prop.ForAll(
		func(lines []cartLine) bool {
			f := newFixture(t)
			products := seedCart(f, lines, func(_ int, l cartLine) int { return l.quantity + l.spare })

			order, err := f.place(buyer)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}

			expected := decimal.Zero
			for i, l := range lines {
				if f.stock(products[i].ID) != l.spare {
					return false
				}
				expected = expected.Add(decimal.New(l.cents, -2).Mul(decimal.NewFromInt(int64(l.quantity))))
			}
			if !order.TotalAmount.Equal(expected) || !order.CalculateTotal().Equal(expected) {
				t.Logf("total %s, expected %s", order.TotalAmount, expected)
				return false
			}

			stored, err := f.service.GetOrder(f.ctx(), order.ID, buyer)
			if err != nil || !stored.TotalAmount.Equal(expected) || len(stored.Items) != len(lines) {
				return false
			}
			return f.cartSize(buyer) == 0
		},
		cartLinesGen(),
	))

	properties.TestingRun(t)
}

func TestProperty_FailedOrderHasNoEffect(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("one short line leaves stock, cart and orders untouched", prop.ForAll(
		func(lines []cartLine, pick int) bool {
			short := pick % len(lines)
			f := newFixture(t)
			stockFor := func(i int, l cartLine) int {
				if i == short {
					return l.quantity - 1
				}
				return l.quantity + l.spare
			}
			products := seedCart(f, lines, stockFor)

			_, err := f.place(buyer)
			var shortage *InsufficientStockError
			if !errors.As(err, &shortage) || shortage.ProductName != products[short].Name {
				t.Logf("expected shortage on %s, got %v", products[short].Name, err)
				return false
			}

			for i, l := range lines {
				if f.stock(products[i].ID) != stockFor(i, l) {
					return false
				}
			}
			return f.cartSize(buyer) == len(lines) && f.orderCount() == 0
		},
		cartLinesGen(),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_StatusGraphOnlyMovesForward(t *testing.T) {
	rank := map[Status]int{StatusPending: 0, StatusConfirmed: 1, StatusShipped: 2, StatusDelivered: 3, StatusCancelled: 4}
	statusGen := gen.OneConstOf(StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled)

	properties := gopter.NewProperties(nil)

	properties.Property("allowed transitions advance the lifecycle and cancel only leaves pending", prop.ForAll(
		func(from, to Status) bool {
			if !from.CanTransitionTo(to) {
				return true
			}
			if to == StatusCancelled {
				return from == StatusPending
			}
			return rank[to] == rank[from]+1
		},
		statusGen,
		statusGen,
	))

	properties.Property("terminal states have no exits", prop.ForAll(
		func(to Status) bool {
			return !StatusDelivered.CanTransitionTo(to) && !StatusCancelled.CanTransitionTo(to)
		},
		statusGen,
	))

	properties.TestingRun(t)
}
