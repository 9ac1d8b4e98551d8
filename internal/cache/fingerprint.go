package cache

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
)

// Fingerprint computes a deterministic hash of a render context. Keys are
// visited in sorted order so insertion order never affects the result; map
// and slice values rely on fmt's stable formatting (maps print key-sorted).
func Fingerprint(context map[string]any) string {
	h := blake3.New()

	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, context[k])
	}

	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// RenderKey joins a template name with the context fingerprint into a cache
// key. The template name leads so InvalidateTemplate can match by prefix.
func RenderKey(template string, context map[string]any) string {
	return template + ":" + Fingerprint(context)
}
