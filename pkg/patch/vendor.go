package patch

import (
	"strings"

	"github.com/psaab/netpatch/pkg/diff"
)

// Vendor specific logics.
const (
	LogicHuaweiUndoNoValue  = "huawei.undo_no_value"
	LogicCiscoCryptoKey     = "cisco.crypto_key"
	LogicRouterOSRemoveFind = "routeros.remove_find"
)

// CryptoKeyCommand regenerates the SSH host key after SSH settings change.
const CryptoKeyCommand = "crypto key generate rsa modulus 2048"

func registerVendorLogics(r *Registry) {
	r.Register(LogicHuaweiUndoNoValue, HuaweiUndoNoValue)
	r.Register(LogicCiscoCryptoKey, CiscoCryptoKey)
	r.Register(LogicRouterOSRemoveFind, RouterOSRemoveFind)
}

// HuaweiUndoNoValue undoes removed rows without their values: VRP rejects
// "undo sysname r1" but accepts "undo sysname".
func HuaweiUndoNoValue(a *Action) []Yield {
	return withRemoval(a, func(n *diff.Node) Yield {
		t := text(n)
		return Yield{Dir: Undo, Row: a.Rule.Undo(a.Rule.Direct.StripValues(t)), Origin: t}
	})
}

// CiscoCryptoKey is Default followed by a key regeneration whenever an
// SSH setting is added or removed.
func CiscoCryptoKey(a *Action) []Yield {
	out := Default(a)
	if len(a.Added)+len(a.Removed) > 0 {
		out = append(out, Yield{Dir: SideEffect, Row: CryptoKeyCommand, Origin: CryptoKeyCommand})
	}
	return out
}

// RouterOSRemoveFind removes "add k=v ..." rows with "remove [find k=v ...]",
// the only way RouterOS addresses list entries. Moved entries are removed
// and added again at the end of the list.
func RouterOSRemoveFind(a *Action) []Yield {
	remove := func(n *diff.Node) Yield {
		t := text(n)
		if args, ok := strings.CutPrefix(t, "add "); ok {
			return Yield{Dir: Undo, Row: "remove [find " + strings.TrimSpace(args) + "]", Origin: t}
		}
		return Remove(a, n)
	}
	var out []Yield
	if len(a.Added) == 0 {
		for _, n := range a.Removed {
			out = append(out, remove(n))
		}
	}
	for _, n := range a.Moved {
		out = append(out, remove(n))
	}
	out = enterAll(out, a.Affected)
	for _, n := range a.Moved {
		out = append(out, Readd(n))
	}
	return replace(out, a)
}
