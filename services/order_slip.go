package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yeremiapane/campus-food/models"
	"github.com/yeremiapane/campus-food/utils"
)

// WriteOrderSlip renders a one page A5 summary of a checked-out order. The
// order must be loaded with its details.
func WriteOrderSlip(w io.Writer, o *models.Order) error {
	if o.Status == models.OrderStatusCart {
		return transitionf("order %d is still in the cart", o.ID)
	}

	pdf := fpdf.New("P", "mm", "A5", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(o.Reference(), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(o.Concession.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, o.Reference(), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	info := [][2]string{
		{"Status", strings.ToUpper(string(o.Status))},
		{"Payment", strings.ToUpper(string(o.PaymentMethod))},
		{"Placed", o.CreatedAt.Format("2006-01-02 15:04 MST")},
	}
	if o.ScheduleTime != nil {
		info = append(info, [2]string{"Pickup", o.ScheduleTime.Format("2006-01-02 15:04 MST")})
	}
	if o.ReceiptDeadline != nil {
		info = append(info, [2]string{"Receipt due", o.ReceiptDeadline.Format("2006-01-02 15:04 MST")})
	}
	if msg := o.DeclineMessage(); msg != "" {
		info = append(info, [2]string{"Declined", msg})
	}
	for _, row := range info {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(30, 5, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, tr(row[1]), "", "L", false)
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(70, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(12, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(0, 6, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, d := range o.Details {
		pdf.CellFormat(70, 6, tr(d.Item.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(12, 6, fmt.Sprintf("%d", d.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(0, 6, utils.FormatPesoASCII(d.TotalPrice), "", 1, "R", false, 0, "")
		for _, v := range d.Variations {
			pdf.SetTextColor(110, 110, 110)
			pdf.CellFormat(70, 5, tr("  + "+v.Name), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 5, utils.FormatPesoASCII(v.Price), "", 1, "R", false, 0, "")
			pdf.SetTextColor(0, 0, 0)
		}
	}

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(82, 8, "Total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, utils.FormatPesoASCII(o.TotalPrice), "T", 1, "R", false, 0, "")

	return pdf.Output(w)
}
