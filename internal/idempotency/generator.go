package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Scope namespaces keys so equal params in different flows never collide
type Scope string

const (
	// ScopeGatewayTransaction keys the processed-transaction ledger
	ScopeGatewayTransaction Scope = "gateway_txn"
)

// keyBytes of the digest are kept. Ledger keys live forever, so they carry
// more of the hash than a request key would.
const keyBytes = 16

// Generator derives deterministic keys from a scope and a set of params
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey returns "<scope>-<hex digest>". Param order does not matter.
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, name := range names {
		fmt.Fprintf(&b, "|%s=%v", name, params[name])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return string(scope) + "-" + hex.EncodeToString(sum[:keyBytes])
}

// Matches reports whether key was generated from scope and params
func (g *Generator) Matches(scope Scope, params map[string]interface{}, key string) bool {
	return g.GenerateKey(scope, params) == key
}
