package authz

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/tokenforge/licensecore/pkg/errors"
)

// Capability names a guarded administrative operation.
type Capability string

const (
	// CapabilityManageCatalog covers product creation, inventory moves,
	// repricing, and renewability toggles.
	CapabilityManageCatalog Capability = "manage_catalog"
	// CapabilityPause covers pausing and unpausing the ledger. Owner only.
	CapabilityPause Capability = "pause"
	// CapabilityConfigureRegistry covers rewiring the controller and
	// withdrawal accounts.
	CapabilityConfigureRegistry Capability = "configure_registry"
	// CapabilityPromotionalIssue covers issuing or renewing licenses
	// without payment.
	CapabilityPromotionalIssue Capability = "promotional_issue"
	// CapabilityWithdraw covers draining accumulated sale balance to the
	// withdrawal account.
	CapabilityWithdraw Capability = "withdraw"
)

// StateSource loads the current administrative wiring.
type StateSource interface {
	AdminAccounts(ctx context.Context) (owner, controller, withdrawal uuid.UUID, err error)
}

// Authorizer decides whether an actor may exercise a capability. The owner
// account holds every capability; the controller may run day-to-day catalog
// operations; the withdrawal account may only withdraw.
type Authorizer struct {
	source StateSource
}

func New(source StateSource) *Authorizer {
	return &Authorizer{source: source}
}

// Require returns a coded error unless the actor holds the capability.
func (a *Authorizer) Require(ctx context.Context, actor uuid.UUID, capability Capability) error {
	if actor == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeZeroAddress, "actor account is required")
	}

	owner, controller, withdrawal, err := a.source.AdminAccounts(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin accounts")
	}

	if actor == owner {
		return nil
	}

	switch capability {
	case CapabilityManageCatalog:
		if actor == controller && controller != uuid.Nil {
			return nil
		}
	case CapabilityWithdraw:
		if actor == withdrawal && withdrawal != uuid.Nil {
			return nil
		}
	}

	return pkgerrors.New(pkgerrors.CodeUnauthorized, "capability "+string(capability)+" denied").
		WithDetails(map[string]any{"capability": capability})
}
