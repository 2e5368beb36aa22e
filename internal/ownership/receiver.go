package ownership

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tokenforge/licensecore/pkg/db/models"
	"github.com/tokenforge/licensecore/pkg/enums"
	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
	"github.com/tokenforge/licensecore/pkg/logger"
)

// receiverAck is the acknowledgement a receiver endpoint must echo back for
// a safe transfer to land.
const receiverAck = "licensecore.v1.receiver"

const receiverTimeout = 5 * time.Second

// ReceiverProber verifies that a recipient can take custody of a token.
// Safe transfers abort unless the probe succeeds.
type ReceiverProber interface {
	Probe(ctx context.Context, recipient *models.Account, tokenID int64, from uuid.UUID) error
}

type receiverNotice struct {
	TokenID int64     `json:"tokenId"`
	From    uuid.UUID `json:"from"`
	To      uuid.UUID `json:"to"`
}

type receiverAckBody struct {
	Ack string `json:"ack"`
}

// HTTPReceiverProber posts a transfer notice to a service account's receiver
// endpoint. Accounts without an endpoint, and plain user accounts, always
// pass.
type HTTPReceiverProber struct {
	httpClient *http.Client
	logg       *logger.Logger
}

func NewHTTPReceiverProber(logg *logger.Logger) *HTTPReceiverProber {
	return &HTTPReceiverProber{
		httpClient: &http.Client{Timeout: receiverTimeout},
		logg:       logg,
	}
}

func (p *HTTPReceiverProber) Probe(ctx context.Context, recipient *models.Account, tokenID int64, from uuid.UUID) error {
	if recipient == nil || recipient.Kind != enums.AccountKindService {
		return nil
	}
	if recipient.ReceiverURL == nil || *recipient.ReceiverURL == "" {
		return nil
	}

	notice := receiverNotice{TokenID: tokenID, From: from, To: recipient.ID}
	payload, err := json.Marshal(notice)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding receiver notice")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *recipient.ReceiverURL, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building receiver request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnsafeRecipient, err, "receiver endpoint unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeUnsafeRecipient, "receiver endpoint rejected the transfer").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	var ack receiverAckBody
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUnsafeRecipient, err, "decoding receiver acknowledgement")
	}
	if ack.Ack != receiverAck {
		return pkgerrors.New(pkgerrors.CodeUnsafeRecipient, "receiver did not acknowledge receipt")
	}

	if p.logg != nil {
		p.logg.Info(p.logg.WithTokenID(ctx, tokenID), "receiver acknowledged transfer")
	}
	return nil
}
