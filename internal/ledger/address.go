package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/Zilliqa/gozilliqa-sdk/bech32"
	"github.com/nu7hatch/gouuid"
	"strings"
)

type Kind string

const (
	KindAccount   Kind = "account"
	KindComponent Kind = "component"
	KindResource  Kind = "resource"
)

// Address identifies an account, component or resource. The kind is part of
// the address so it can be checked without a registry lookup.
type Address string

func (a Address) Kind() Kind {
	idx := strings.IndexByte(string(a), '_')
	if idx < 0 {
		return ""
	}

	return Kind(a[:idx])
}

func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}

func newAddress(kind Kind, seed string) Address {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%s", kind, seed)))
	hexAddr := hex.EncodeToString(sum[:20])

	encoded, err := bech32.ToBech32Address(hexAddr)
	if err != nil {
		encoded = hexAddr
	}

	return Address(fmt.Sprintf("%s_%s", kind, encoded))
}

type LocalID string

func IntegerID(n uint64) LocalID {
	return LocalID(fmt.Sprintf("#%d#", n))
}

func StringID(s string) LocalID {
	return LocalID(fmt.Sprintf("<%s>", s))
}

func RUID() LocalID {
	u, _ := uuid.NewV4()
	return LocalID(fmt.Sprintf("{%s}", u.String()))
}

// GlobalID names one non-fungible unit: its resource plus its local id.
type GlobalID struct {
	Resource Address `json:"resource"`
	Local    LocalID `json:"localId"`
}

func NewGlobalID(resource Address, local LocalID) GlobalID {
	return GlobalID{Resource: resource, Local: local}
}

func (g GlobalID) String() string {
	return fmt.Sprintf("%s:%s", g.Resource, g.Local)
}

func ParseGlobalID(s string) (GlobalID, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx <= 0 || idx == len(s)-1 {
		return GlobalID{}, Invalid("malformed global id %q", s)
	}

	return GlobalID{Resource: Address(s[:idx]), Local: LocalID(s[idx+1:])}, nil
}
