package providers

import (
	"github.com/brightmoja/memberpay/internal/providers/email"
	"github.com/brightmoja/memberpay/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
