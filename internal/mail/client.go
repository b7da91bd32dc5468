package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	gomail "github.com/emersion/go-message/mail"

	"github.com/emfcontracting/fieldsync/internal/model"
)

// Client wraps go-imap v2 for connecting to and querying the dispatch
// mailbox. Every exported operation opens its own session and tears it
// down before returning, so a failure in one operation can never leak a
// connection into the next.
type Client struct {
	cfg            model.MailConfig
	password       string
	connectTimeout time.Duration
	authTimeout    time.Duration
	opTimeout      time.Duration
	recentWindow   time.Duration
	log            *slog.Logger
}

// NewClient creates a new IMAP client configuration. The password is
// passed separately because it may come from the OS keyring rather than
// the config file.
func NewClient(
	cfg model.MailConfig,
	password string,
	timeouts model.TimeoutConfig,
	recentDays int,
	log *slog.Logger,
) *Client {
	connect := time.Duration(timeouts.ConnectSec) * time.Second
	if connect <= 0 {
		connect = 5 * time.Second
	}
	auth := time.Duration(timeouts.AuthSec) * time.Second
	if auth <= 0 {
		auth = 10 * time.Second
	}
	op := time.Duration(timeouts.OpSec) * time.Second
	if op <= 0 {
		op = 30 * time.Second
	}
	if recentDays <= 0 {
		recentDays = 7
	}
	return &Client{
		cfg:            cfg,
		password:       password,
		connectTimeout: connect,
		authTimeout:    auth,
		opTimeout:      op,
		recentWindow:   time.Duration(recentDays) * 24 * time.Hour,
		log:            log,
	}
}

// await runs one IMAP exchange in a goroutine and bounds it by the
// per-operation budget and the caller's context. On timeout or
// cancellation the connection is closed so the blocked goroutine
// unwinds instead of hanging on a dead server.
func (c *Client) await(
	ctx context.Context, client *imapclient.Client, stage string, fn func() error,
) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-time.After(c.opTimeout):
		if client != nil {
			_ = client.Close()
		}
		return &TimeoutError{Stage: stage}
	case <-ctx.Done():
		if client != nil {
			_ = client.Close()
		}
		return ctx.Err()
	}
}

// connect dials the IMAP server and authenticates, enforcing separate
// budgets for the TCP/TLS dial and the login exchange. The caller is
// responsible for Logout on the returned client.
func (c *Client) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := c.cfg.Host + ":" + c.cfg.Port

	type dialResult struct {
		client *imapclient.Client
		err    error
	}

	dialCh := make(chan dialResult, 1)
	go func() {
		var client *imapclient.Client
		var err error
		if c.cfg.TLS {
			client, err = imapclient.DialTLS(addr, nil)
		} else {
			client, err = imapclient.DialStartTLS(addr, nil)
		}
		dialCh <- dialResult{client, err}
	}()

	// Close the connection if the dial completes after we gave up.
	reapDial := func() {
		go func() {
			if r := <-dialCh; r.client != nil {
				_ = r.client.Close()
			}
		}()
	}

	var client *imapclient.Client
	select {
	case r := <-dialCh:
		if r.err != nil {
			return nil, &ConnectionError{Addr: addr, Err: r.err}
		}
		client = r.client
	case <-time.After(c.connectTimeout):
		reapDial()
		return nil, &TimeoutError{Stage: "connect"}
	case <-ctx.Done():
		reapDial()
		return nil, ctx.Err()
	}

	loginCh := make(chan error, 1)
	go func() {
		loginCh <- client.Login(c.cfg.Username, c.password).Wait()
	}()

	select {
	case err := <-loginCh:
		if err != nil {
			_ = client.Logout().Wait()
			return nil, &AuthError{Username: c.cfg.Username, Err: err}
		}
	case <-time.After(c.authTimeout):
		_ = client.Close()
		return nil, &TimeoutError{Stage: "auth"}
	case <-ctx.Done():
		_ = client.Close()
		return nil, ctx.Err()
	}

	return client, nil
}

// SelectScope opens a folder and evaluates the search implied by mode,
// returning matching UIDs and count metadata without fetching bodies.
// A missing or renamed folder yields an empty scope rather than an
// error, so one bad secondary folder cannot block a whole pass.
func (c *Client) SelectScope(
	ctx context.Context, folder string, mode Mode,
) (*Scope, error) {
	return c.Search(ctx, folder, c.criteriaFor(mode))
}

// Search opens a folder and evaluates arbitrary IMAP search criteria,
// for callers whose needs are not covered by the canned searches.
func (c *Client) Search(
	ctx context.Context, folder string, criteria *imap.SearchCriteria,
) (*Scope, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	return c.scopeFor(ctx, client, folder, criteria)
}

// SearchDispatch evaluates the dispatch-email search: subject contains
// "Work Order" or "Dispatch", limited to since, optionally unread only,
// optionally restricted to the configured sender.
func (c *Client) SearchDispatch(
	ctx context.Context, folder string, since time.Time, unseenOnly bool,
) (*Scope, error) {
	criteria := &imap.SearchCriteria{
		Since: since,
		Or: [][2]imap.SearchCriteria{{
			{Header: []imap.SearchCriteriaHeaderField{
				{Key: "Subject", Value: "Work Order"},
			}},
			{Header: []imap.SearchCriteriaHeaderField{
				{Key: "Subject", Value: "Dispatch"},
			}},
		}},
	}
	if unseenOnly {
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}
	c.restrictSender(criteria)

	return c.Search(ctx, folder, criteria)
}

// SearchSubject finds messages whose subject contains the given
// substring within the window, regardless of read status. Used for
// manual re-import of a single work-order number.
func (c *Client) SearchSubject(
	ctx context.Context, folder, substring string, since time.Time,
) (*Scope, error) {
	criteria := &imap.SearchCriteria{
		Since: since,
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "Subject", Value: substring},
		},
	}
	c.restrictSender(criteria)

	return c.Search(ctx, folder, criteria)
}

// Fetch retrieves messages by UID from a folder. When full is false only
// envelope data is fetched (the reconciliation flow works from headers).
// limit bounds the fetch to the most recent N UIDs; zero means no bound.
// Errors on individual messages are accumulated, not fatal to the batch.
func (c *Client) Fetch(
	ctx context.Context,
	folder string,
	uids []imap.UID,
	full bool,
	limit int,
) ([]RawMessage, []MessageError, error) {
	if len(uids) == 0 {
		return nil, nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	client, err := c.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := c.await(ctx, client, "select "+folder, func() error {
		_, err := client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
		return err
	}); err != nil {
		return nil, nil, fmt.Errorf("selecting %s: %w", folder, err)
	}

	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	}
	var bodySection *imap.FetchItemBodySection
	if full {
		bodySection = &imap.FetchItemBodySection{Peek: true}
		fetchOpts.BodySection = []*imap.FetchItemBodySection{bodySection}
	}

	var msgs []RawMessage
	var msgErrs []MessageError
	err = c.await(ctx, client, "fetch "+folder, func() error {
		fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
		for {
			msg := fetchCmd.Next()
			if msg == nil {
				break
			}

			buf, err := msg.Collect()
			if err != nil {
				msgErrs = append(msgErrs, collectError(buf, err))
				continue
			}

			raw := messageFromBuffer(buf)
			if full {
				if rawBody := buf.FindBodySection(bodySection); rawBody != nil {
					raw.Body = extractBody(rawBody)
				}
			}
			msgs = append(msgs, raw)
		}
		return fetchCmd.Close()
	})
	if err != nil {
		if IsTimeout(err) || ctx.Err() != nil {
			// The drain goroutine may still be writing the slices.
			return nil, nil, err
		}
		return msgs, msgErrs, fmt.Errorf("fetching from %s: %w", folder, err)
	}

	return msgs, msgErrs, nil
}

// collectError builds a MessageError from a possibly-partial fetch
// buffer so the report names the message when the envelope arrived
// before the failure.
func collectError(buf *imapclient.FetchMessageBuffer, err error) MessageError {
	msgErr := MessageError{Err: fmt.Errorf("collecting message data: %w", err)}
	if buf != nil {
		msgErr.UID = buf.UID
		if buf.Envelope != nil {
			msgErr.Subject = buf.Envelope.Subject
		}
	}
	return msgErr
}

// MarkSeen flags a single message as read so the next unseen scan skips it.
func (c *Client) MarkSeen(ctx context.Context, folder string, uid imap.UID) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if err := c.await(ctx, client, "select "+folder, func() error {
		_, err := client.Select(folder, nil).Wait()
		return err
	}); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}

	return c.await(ctx, client, "store", func() error {
		return client.Store(imap.UIDSetNum(uid), &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen},
		}, nil).Close()
	})
}

// ListFolders returns the mailbox inventory with per-folder message and
// unseen counts, for the diagnostics report.
func (c *Client) ListFolders(ctx context.Context) ([]FolderInfo, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	var mailboxes []*imap.ListData
	if err := c.await(ctx, client, "list", func() error {
		var err error
		mailboxes, err = client.List("", "*", nil).Collect()
		return err
	}); err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	var folders []FolderInfo
	for _, mb := range mailboxes {
		info := FolderInfo{Name: mb.Mailbox}

		var statusData *imap.StatusData
		err := c.await(ctx, client, "status "+mb.Mailbox, func() error {
			var err error
			statusData, err = client.Status(mb.Mailbox, &imap.StatusOptions{
				NumMessages: true,
				NumUnseen:   true,
			}).Wait()
			return err
		})
		if err != nil {
			if IsTimeout(err) || ctx.Err() != nil {
				return nil, err
			}
			// Some folders (e.g. \Noselect containers) refuse STATUS.
			c.log.Debug("status failed", "folder", mb.Mailbox, "error", err)
			folders = append(folders, info)
			continue
		}

		if statusData.NumMessages != nil {
			info.Total = *statusData.NumMessages
		}
		if statusData.NumUnseen != nil {
			info.Unseen = *statusData.NumUnseen
		}
		folders = append(folders, info)
	}

	return folders, nil
}

// criteriaFor maps a scope mode to IMAP search criteria.
func (c *Client) criteriaFor(mode Mode) *imap.SearchCriteria {
	switch mode {
	case ModeUnseen:
		return &imap.SearchCriteria{NotFlag: []imap.Flag{imap.FlagSeen}}
	case ModeRecent:
		return &imap.SearchCriteria{Since: time.Now().Add(-c.recentWindow)}
	default:
		return &imap.SearchCriteria{}
	}
}

// restrictSender adds a From criterion when a sender filter is configured.
func (c *Client) restrictSender(criteria *imap.SearchCriteria) {
	if c.cfg.Sender == "" {
		return
	}
	criteria.Header = append(criteria.Header, imap.SearchCriteriaHeaderField{
		Key: "From", Value: c.cfg.Sender,
	})
}

// scopeFor selects a folder and runs the search, tolerating a missing
// folder by returning an empty scope. Timeouts and cancellation still
// propagate; only a server-side select failure is treated as empty.
func (c *Client) scopeFor(
	ctx context.Context,
	client *imapclient.Client,
	folder string,
	criteria *imap.SearchCriteria,
) (*Scope, error) {
	var selectData *imap.SelectData
	err := c.await(ctx, client, "select "+folder, func() error {
		var err error
		selectData, err = client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
		return err
	})
	if err != nil {
		if IsTimeout(err) || ctx.Err() != nil {
			return nil, err
		}
		c.log.Warn("folder not selectable, treating as empty",
			"folder", folder, "error", err)
		return &Scope{Folder: folder}, nil
	}

	var searchData *imap.SearchData
	err = c.await(ctx, client, "search "+folder, func() error {
		var err error
		searchData, err = client.UIDSearch(criteria, nil).Wait()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder, err)
	}

	scope := &Scope{
		Folder: folder,
		Total:  selectData.NumMessages,
		UIDs:   searchData.AllUIDs(),
	}

	var unseenData *imap.SearchData
	err = c.await(ctx, client, "search "+folder, func() error {
		var err error
		unseenData, err = client.UIDSearch(&imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}, nil).Wait()
		return err
	})
	if err == nil {
		scope.Unseen = uint32(len(unseenData.AllUIDs()))
	}

	return scope, nil
}

// messageFromBuffer extracts a RawMessage from a FetchMessageBuffer.
func messageFromBuffer(buf *imapclient.FetchMessageBuffer) RawMessage {
	raw := RawMessage{UID: buf.UID}

	if buf.Envelope != nil {
		raw.Subject = buf.Envelope.Subject
		raw.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				raw.From = from.Name
			} else {
				raw.From = from.Addr()
			}
		}
	}

	for _, flag := range buf.Flags {
		raw.Flags = append(raw.Flags, string(flag))
	}

	return raw
}

// extractBody parses a raw RFC 2822 body with go-message and returns
// the HTML part if present, otherwise the plain-text part. The dispatch
// system sends HTML; the decoder downstream strips it either way.
func extractBody(raw []byte) string {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Unparseable MIME: treat the whole payload as the body.
		return string(raw)
	}
	defer mr.Close()

	var textBody, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = string(body)
		}
	}

	if htmlBody != "" {
		return htmlBody
	}
	return textBody
}
