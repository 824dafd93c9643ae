package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type PDFProvider struct {
	orgName string
}

func NewProvider(orgName string) *PDFProvider {
	if orgName == "" {
		orgName = "MemberPay"
	}
	return &PDFProvider{orgName: orgName}
}

func (p *PDFProvider) GenerateDuesReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		text.NewCol(12, "Dues Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(25,
		col.New(6).Add(
			text.New(p.orgName, props.Text{Style: fontstyle.Bold}),
			text.New("Reference: "+data.Reference, props.Text{Top: 6}),
			text.New("Session: "+data.Session, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Member", props.Text{Style: fontstyle.Bold}),
			text.New(data.MemberName, props.Text{Top: 6}),
			text.New("Membership no: "+data.MembershipNo, props.Text{Top: 10}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, data.Amount+" paid on "+data.PaidAt, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(12, "Confirmed via "+data.PaidVia+". Keep this receipt for your records.", props.Text{
			Size: 9,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}

func (p *PDFProvider) GenerateMembershipCredential(ctx context.Context, data CredentialData) (io.Reader, error) {
	cfg := config.NewBuilder().Build()

	m := maroto.New(cfg)

	m.AddRow(35,
		text.NewCol(12, "Certificate of Membership", props.Text{
			Size:  22,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(20,
		text.NewCol(12, p.orgName+" certifies that", props.Text{
			Size:  11,
			Align: align.Center,
		}),
	)

	m.AddRow(20,
		text.NewCol(12, data.MemberName, props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Center,
		}),
	)

	m.AddRow(15,
		text.NewCol(12, "is a registered member. Membership no "+data.MembershipNo+".", props.Text{
			Size:  11,
			Align: align.Center,
		}),
	)

	m.AddRow(15,
		col.New(6).Add(
			text.New("Issued: "+data.IssuedAt, props.Text{Size: 9}),
		),
		col.New(6).Add(
			text.New("Payment reference: "+data.Reference, props.Text{Size: 9, Align: align.Right}),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}

	return bytes.NewReader(doc.GetBytes()), nil
}
