package smart

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/fenilsonani/vcs-remote/internal/transport"
)

// Client drives a subtransport through the listing/continuation sequences of
// the smart protocol. It issues one action at a time and closes each stream
// before the next action or before closing the subtransport.
type Client struct {
	url string
	sub transport.SmartSubtransport
	log *zap.Logger
}

// NewClient wraps an already constructed subtransport.
func NewClient(url string, sub transport.SmartSubtransport, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{url: url, sub: sub, log: logger}
}

// Dial selects a subtransport for owner's URL and wraps it.
func Dial(owner *transport.Owner) (*Client, error) {
	sub, err := transport.New(owner)
	if err != nil {
		return nil, err
	}
	return NewClient(owner.URL, sub, owner.Log()), nil
}

// Close releases the subtransport.
func (c *Client) Close() error {
	return c.sub.Close()
}

// ListRefs performs a listing action and returns the parsed advertisement.
// The connection is closed before returning; use FetchPack or SendPack to
// continue an exchange on one connection.
func (c *Client) ListRefs(service transport.SmartService) (*Advertisement, error) {
	if !service.IsListing() {
		return nil, fmt.Errorf("ListRefs requires a listing action, got %v", service)
	}

	stream, err := c.sub.Action(c.url, service)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	adv, err := parseRefAdvertisement(stream)
	if err != nil {
		return nil, err
	}
	c.log.Debug("listed refs",
		zap.String("service", service.String()),
		zap.Int("refs", len(adv.Refs)))
	return adv, nil
}

// FetchPack lists refs, negotiates wants/haves on the same connection, and
// copies the resulting pack to out verbatim. It returns the advertisement
// alongside the number of pack bytes received.
func (c *Client) FetchPack(wants, haves []string, out io.Writer) (*Advertisement, int64, error) {
	ls, err := c.sub.Action(c.url, transport.ServiceUploadPackLs)
	if err != nil {
		return nil, 0, err
	}
	defer ls.Close()

	adv, err := parseRefAdvertisement(ls)
	if err != nil {
		return nil, 0, err
	}

	if len(wants) == 0 {
		for _, ref := range adv.Refs {
			wants = append(wants, ref.ObjectID)
		}
	}
	if len(wants) == 0 {
		return adv, 0, fmt.Errorf("remote advertised nothing to fetch")
	}

	// over SSH the continuation is the same connection the listing opened;
	// over HTTP it is a fresh request-scoped stream
	stream, err := c.sub.Action(c.url, transport.ServiceUploadPack)
	if err != nil {
		return nil, 0, err
	}
	if stream != ls {
		defer stream.Close()
	}

	for _, want := range wants {
		if err := writePacketf(stream, "want %s\n", want); err != nil {
			return nil, 0, fmt.Errorf("sending wants: %w", err)
		}
	}
	if err := writeFlush(stream); err != nil {
		return nil, 0, err
	}
	for _, have := range haves {
		if err := writePacketf(stream, "have %s\n", have); err != nil {
			return nil, 0, fmt.Errorf("sending haves: %w", err)
		}
	}
	if err := writePacketf(stream, "done\n"); err != nil {
		return nil, 0, err
	}

	// the server answers the negotiation with ACK/NAK pkt-lines; only the
	// pack bytes after them belong in out
	if err := readAckNak(stream); err != nil {
		return nil, 0, err
	}

	n, err := io.Copy(out, stream)
	if err != nil {
		return nil, 0, fmt.Errorf("receiving pack: %w", err)
	}
	c.log.Debug("received pack", zap.Int64("bytes", n))
	return adv, n, nil
}

// readAckNak consumes the server's negotiation verdict. Intermediate
// "ACK <oid> continue/common/ready" lines are discarded; a final NAK or
// plain ACK ends the negotiation and the pack follows.
func readAckNak(r io.Reader) error {
	for {
		payload, flush, err := readPacket(r)
		if err != nil {
			return fmt.Errorf("reading negotiation response: %w", err)
		}
		if flush {
			continue
		}

		line := strings.TrimSuffix(string(payload), "\n")
		switch {
		case line == "NAK":
			return nil
		case strings.HasPrefix(line, "ACK "):
			if strings.HasSuffix(line, "continue") ||
				strings.HasSuffix(line, "common") ||
				strings.HasSuffix(line, "ready") {
				continue
			}
			return nil
		default:
			return fmt.Errorf("unexpected negotiation response %q", line)
		}
	}
}

// RefUpdate names one ref change to push: OldID may be the zero id for a
// create, NewID the zero id for a delete.
type RefUpdate struct {
	OldID string
	NewID string
	Name  string
}

// SendPack lists refs for push, sends the update commands, and streams the
// pack from pack verbatim. The remote's status report is copied to report.
func (c *Client) SendPack(updates []RefUpdate, pack io.Reader, report io.Writer) (*Advertisement, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("nothing to push")
	}

	ls, err := c.sub.Action(c.url, transport.ServiceReceivePackLs)
	if err != nil {
		return nil, err
	}
	defer ls.Close()

	adv, err := parseRefAdvertisement(ls)
	if err != nil {
		return nil, err
	}

	stream, err := c.sub.Action(c.url, transport.ServiceReceivePack)
	if err != nil {
		return nil, err
	}
	if stream != ls {
		defer stream.Close()
	}

	for i, u := range updates {
		line := fmt.Sprintf("%s %s %s", u.OldID, u.NewID, u.Name)
		if i == 0 {
			// capabilities ride after a NUL on the first command
			line += "\x00report-status"
		}
		if err := writePacketf(stream, "%s\n", line); err != nil {
			return nil, fmt.Errorf("sending ref update: %w", err)
		}
	}
	if err := writeFlush(stream); err != nil {
		return nil, err
	}

	if pack != nil {
		if _, err := io.Copy(stream, pack); err != nil {
			return nil, fmt.Errorf("sending pack: %w", err)
		}
	}

	if report != nil {
		if _, err := io.Copy(report, stream); err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading status report: %w", err)
		}
	}
	return adv, nil
}
