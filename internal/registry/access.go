package registry

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/domain"
)

// StaticAccessController implements domain.AccessController with a single
// operator address fixed at construction time, the way the deployment
// designates it in config.
type StaticAccessController struct {
	operator common.Address
}

// NewStaticAccessController creates an access controller that recognizes
// exactly one operator.
func NewStaticAccessController(operator common.Address) *StaticAccessController {
	return &StaticAccessController{operator: operator}
}

// IsOperator reports whether addr is the designated operator. The zero
// address never qualifies, even if configured.
func (a *StaticAccessController) IsOperator(addr common.Address) bool {
	return addr != domain.ZeroAddress && addr == a.operator
}

var _ domain.AccessController = (*StaticAccessController)(nil)
