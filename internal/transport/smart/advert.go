package smart

import (
	"fmt"
	"io"
	"strings"
)

// Ref is one advertised reference.
type Ref struct {
	ObjectID string
	Name     string
}

// Advertisement is the parsed ref advertisement a listing action produces.
type Advertisement struct {
	Service      string // set only when the server sent a service header
	Refs         []Ref
	Capabilities []string
}

// Ref returns the object id advertised under name.
func (a *Advertisement) Ref(name string) (string, bool) {
	for _, r := range a.Refs {
		if r.Name == name {
			return r.ObjectID, true
		}
	}
	return "", false
}

// parseRefAdvertisement reads pkt-lines up to the terminating flush-pkt.
// HTTP servers prefix the advertisement with a "# service=..." header packet
// followed by its own flush; SSH servers send refs directly. Capabilities
// ride after a NUL on the first ref line. An advertisement with zero refs
// (an empty remote repository) is valid.
func parseRefAdvertisement(r io.Reader) (*Advertisement, error) {
	adv := &Advertisement{}
	first := true
	headerOpen := false // "# service=" seen, its delimiting flush not yet consumed

	for {
		payload, flush, err := readPacket(r)
		if err != nil {
			if err == io.EOF && !first {
				// some servers close without a trailing flush
				return adv, nil
			}
			return nil, fmt.Errorf("reading ref advertisement: %w", err)
		}
		if flush {
			if headerOpen {
				// delimiter between the service header and the refs
				headerOpen = false
				continue
			}
			return adv, nil
		}

		line := strings.TrimSuffix(string(payload), "\n")
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "# service=") {
			adv.Service = strings.TrimPrefix(line, "# service=")
			headerOpen = true
			continue
		}

		if first {
			line = parseCapabilities(line, adv)
			first = false
		}

		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid ref line %q", line)
		}
		adv.Refs = append(adv.Refs, Ref{ObjectID: fields[0], Name: fields[1]})
	}
}

func parseCapabilities(line string, adv *Advertisement) string {
	if idx := strings.IndexByte(line, 0); idx >= 0 {
		adv.Capabilities = strings.Fields(line[idx+1:])
		return line[:idx]
	}
	return line
}
