package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/infinity-9427/shop-microservices/orders/internal/models"
)

// Canonical rendering of a create-order request for idempotency hashing:
// keys sorted, items stable-sorted by product id, product ids as lowercase
// hex-UUID strings, no whitespace. Struct fields are declared in sorted key
// order so json.Marshal emits the canonical form directly.
type canonicalItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type canonicalRequest struct {
	Items     []canonicalItem `json:"items"`
	UserEmail string          `json:"user_email"`
}

// computeRequestHash returns the lowercase hex SHA-256 of the canonical JSON
// rendering of the request. Two requests with the same user and the same
// lines (in any order) hash equally.
func computeRequestHash(req *models.CreateOrderRequest) string {
	items := make([]canonicalItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = canonicalItem{
			ProductID: strings.ToLower(item.ProductID.String()),
			Quantity:  item.Quantity,
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})

	payload, _ := json.Marshal(canonicalRequest{
		Items:     items,
		UserEmail: req.UserEmail,
	})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
