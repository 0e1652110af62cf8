package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidURIParams is returned when neither a tx hash nor an address is given
var ErrInvalidURIParams = errors.New("invalid parameters")

// ErrInvalidURI is returned for URIs that cannot be decomposed
var ErrInvalidURI = errors.New("invalid URI")

// URIParams identifies a transaction or an address on a chain
type URIParams struct {
	ChainID int64
	TxHash  string
	Address string
}

// URI is a decomposed address or transaction identifier
type URI struct {
	Blockchain  string `json:"blockchain"`
	ChainID     int64  `json:"chainId,omitempty"`
	AddressType string `json:"addressType"`
	TxHash      string `json:"txHash,omitempty"`
	Address     string `json:"address,omitempty"`
}

// GenerateURI builds a lowercase identifier such as ethereum:1:address:0xabc
func GenerateURI(blockchain string, params URIParams) (string, error) {
	if blockchain == "" {
		return "", ErrInvalidURIParams
	}
	parts := []string{blockchain}
	if params.ChainID != 0 {
		parts = append(parts, strconv.FormatInt(params.ChainID, 10))
	}
	switch {
	case params.TxHash != "":
		parts = append(parts, "tx", params.TxHash)
	case params.Address != "":
		parts = append(parts, "address", params.Address)
	default:
		return "", ErrInvalidURIParams
	}
	return strings.ToLower(strings.Join(parts, ":")), nil
}

// DecomposeURI parses an identifier produced by GenerateURI
func DecomposeURI(uri string) (URI, error) {
	parts := strings.Split(uri, ":")
	switch {
	case strings.HasPrefix(uri, "ethereum") && len(parts) == 4:
		chainID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return URI{}, fmt.Errorf("%w: bad chain id %q", ErrInvalidURI, parts[1])
		}
		res := URI{Blockchain: parts[0], ChainID: chainID, AddressType: parts[2]}
		res.assign(parts[3])
		return res, nil
	case strings.HasPrefix(uri, "bitcoin") && len(parts) == 3:
		res := URI{Blockchain: parts[0], AddressType: parts[1]}
		res.assign(parts[2])
		return res, nil
	default:
		return URI{}, ErrInvalidURI
	}
}

func (u *URI) assign(value string) {
	switch u.AddressType {
	case "tx":
		u.TxHash = value
	case "address":
		u.Address = value
	}
}

// AddressFromURI returns the address of an address URI, or an empty string
func AddressFromURI(uri string) string {
	u, err := DecomposeURI(uri)
	if err != nil {
		return ""
	}
	return u.Address
}
