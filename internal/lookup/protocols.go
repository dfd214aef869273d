package lookup

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/gopacket/layers"
	"gopkg.in/yaml.v3"
)

// ProtocolMap maps a protocol number token ("6") to a protocol name ("tcp").
// Names are used as-is; by convention they are lowercase.
type ProtocolMap map[string]string

// Name implements flowlog.ProtocolResolver.
func (m ProtocolMap) Name(number string) (string, bool) {
	name, ok := m[number]
	return name, ok
}

// Merge adds entries from other for numbers m does not have yet.
func (m ProtocolMap) Merge(other ProtocolMap) {
	for k, v := range other {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
}

//go:embed protocol_map.json
var bundledProtocols []byte

// BundledProtocolsName is the name reported for the embedded protocol map.
const BundledProtocolsName = "protocol_map.json (bundled)"

// DefaultProtocols returns the protocol map shipped with the binary.
func DefaultProtocols() (ProtocolMap, error) {
	return LoadProtocols(bytes.NewReader(bundledProtocols), "protocol_map.json")
}

var errNotObject = errors.New("protocol map must be an object of strings")

// LoadProtocols decodes a protocol map. name selects the format: files ending
// in .yaml or .yml are YAML, everything else is JSON.
func LoadProtocols(r io.Reader, name string) (ProtocolMap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var m ProtocolMap
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode yaml protocol map: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode json protocol map: %w", err)
		}
	}
	if m == nil {
		return nil, errNotObject
	}

	return m, nil
}

// IANAProtocols returns lowercase IANA names for every assigned protocol
// number gopacket knows about, e.g. "6" -> "tcp", "1" -> "icmpv4".
func IANAProtocols() ProtocolMap {
	m := make(ProtocolMap)
	for i := 0; i < 256; i++ {
		name := layers.IPProtocol(i).String()
		if name == "" || strings.HasPrefix(name, "Unknown") {
			continue
		}
		m[strconv.Itoa(i)] = strings.ToLower(name)
	}
	return m
}
