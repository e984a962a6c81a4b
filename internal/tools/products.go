package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/purchase"
)

const productsUnavailableReply = "I'm sorry, I can't pull up trending products right now. Ask me again in a bit!"

// dispatchProducts handles get_trending_products: fetch the list, move the
// purchase funnel to products-displayed, push the list to the client, and
// produce a spoken summary.
func (r *Registry) dispatchProducts(ctx context.Context, tc *TurnContext) Outcome {
	items, err := r.products.Trending(ctx)
	if err != nil {
		r.log.Warn("trending products fetch failed", "session_id", tc.SessionID, "error", err)
		return Outcome{Text: productsUnavailableReply}
	}
	if len(items) == 0 {
		return Outcome{Text: productsUnavailableReply}
	}

	if err := r.purchases.Set(tc.SessionID, purchase.StatusProductsDisplayed, nil); err != nil {
		r.log.Warn("purchase state update failed", "session_id", tc.SessionID, "error", err)
	}

	tc.Sink.Send(event.ProductsDisplay{
		Products:  items,
		SessionID: tc.SessionID,
		Timestamp: r.now(),
	})

	var b strings.Builder
	b.WriteString("Here are some trending picks for you: ")
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s at %.2f %s", item.Name, item.Price, item.Currency)
	}
	b.WriteString(". Want a closer look at any of them?")
	return Outcome{Text: b.String()}
}
