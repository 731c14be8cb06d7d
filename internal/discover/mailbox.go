package discover

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"outreach-engine/internal/config"
	"outreach-engine/internal/domain"
)

// Mailbox ingests job-alert emails over IMAP. Each matching unseen
// message becomes one posting; messages are fetched with BODY.PEEK[] so
// they are not marked seen if the run dies before persisting.
type Mailbox struct {
	cfg      config.Config
	password string
}

func NewMailbox(cfg config.Config, password string) *Mailbox {
	return &Mailbox{cfg: cfg, password: password}
}

func (m *Mailbox) Name() string { return "mailbox" }

func (m *Mailbox) Discover(ctx context.Context, term, location string) ([]domain.JobPosting, error) {
	mc := m.cfg.Discovery.Mailbox

	addr := mc.IMAPHost
	if mc.IMAPPort != 0 && !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, mc.IMAPPort)
	} else if !strings.Contains(addr, ":") {
		addr += ":993"
	}

	c, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "imap dial tls"), domain.ErrDiscovery)
	}
	defer func() { _ = c.Close() }()

	if err := c.Login(mc.Username, m.password).Wait(); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "imap login"), domain.ErrDiscovery)
	}
	defer func() { _ = c.Logout().Wait() }()

	box := mc.Mailbox
	if box == "" {
		box = "INBOX"
	}
	if _, err := c.Select(box, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "imap select %q", box), domain.ErrDiscovery)
	}

	// alerts older than this are stale listings anyway
	cutoff := time.Now().AddDate(0, -1, 0)
	searchData, err := c.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   cutoff,
	}, nil).Wait()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "imap uid search"), domain.ErrDiscovery)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	const maxMessages = 200
	if len(uids) > maxMessages {
		uids = uids[len(uids)-maxMessages:]
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	var out []domain.JobPosting
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return out, errors.Mark(errors.Wrap(err, "imap fetch collect"), domain.ErrDiscovery)
		}

		var subject, from string
		received := time.Now().UTC()
		if buf.Envelope != nil {
			subject = buf.Envelope.Subject
			if !buf.Envelope.Date.IsZero() {
				received = buf.Envelope.Date.UTC()
			}
			if len(buf.Envelope.From) > 0 {
				from = buf.Envelope.From[0].Name
				if from == "" {
					from = buf.Envelope.From[0].Addr()
				}
			}
		}

		if len(mc.SubjectAny) > 0 && !containsAnyCI(subject, mc.SubjectAny) {
			continue
		}

		var body string
		if b := buf.FindBodySection(bodyAll); b != nil {
			body = messageText(b)
		}
		if !matchesTerm(term, subject, body) || !matchesLocation(location, body) {
			continue
		}

		cands := extractCandidates(body)
		// our own alert address is not a recipient
		cands = without(cands, strings.ToLower(mc.Username))
		if len(cands) == 0 {
			continue
		}

		out = append(out, domain.JobPosting{
			Board:        m.Name(),
			Company:      cleanText(from),
			Title:        cleanText(subject),
			Location:     location,
			Description:  body,
			Candidates:   cands,
			DiscoveredAt: received,
		})
	}
	if err := fetchCmd.Close(); err != nil {
		return out, errors.Mark(errors.Wrap(err, "imap fetch close"), domain.ErrDiscovery)
	}
	return out, nil
}

func containsAnyCI(s string, needles []string) bool {
	low := strings.ToLower(s)
	for _, n := range needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && strings.Contains(low, n) {
			return true
		}
	}
	return false
}

func without(xs []string, drop string) []string {
	var out []string
	for _, x := range xs {
		if x != drop {
			out = append(out, x)
		}
	}
	return out
}

var reTags = regexp.MustCompile(`(?is)<[^>]+>`)

// messageText extracts a best-effort plaintext body from a raw RFC822
// message, preferring text/plain parts of multipart mail.
func messageText(raw []byte) string {
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return stripTags(string(raw))
	}

	ctype := msg.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(ctype)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(msg.Body, params["boundary"])
		var plain, html string
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			b, _ := io.ReadAll(decoded(part, part.Header.Get("Content-Transfer-Encoding")))
			pt, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
			switch pt {
			case "text/plain":
				plain += string(b)
			case "text/html":
				html += string(b)
			}
		}
		if plain != "" {
			return plain
		}
		return stripTags(html)
	}

	b, _ := io.ReadAll(decoded(msg.Body, msg.Header.Get("Content-Transfer-Encoding")))
	if strings.Contains(strings.ToLower(mediaType), "html") {
		return stripTags(string(b))
	}
	return string(b)
}

func decoded(r io.Reader, encoding string) io.Reader {
	if strings.EqualFold(strings.TrimSpace(encoding), "quoted-printable") {
		return quotedprintable.NewReader(r)
	}
	return r
}

func stripTags(s string) string {
	return reTags.ReplaceAllString(s, " ")
}
