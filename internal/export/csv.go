// Package export projects the order ledger into CSV. Strictly read-only:
// it consumes aggregated totals and never recomputes or mutates them.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/caravel-preorders/caravel/internal/ledger"
	"github.com/caravel-preorders/caravel/internal/preorders"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

// OrderSource lists orders for projection. Implemented by the pre-order
// service.
type OrderSource interface {
	List(ctx context.Context, req preorders.ListOrdersRequest) ([]preorders.Order, int, error)
}

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.flush()
	}
	return nil
}

func (s *csvStreamer) flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

var header = []string{
	"Order ID", "Customer ID", "Flight ID", "Status",
	"Subtotal", "Delivery Charges", "COD Amount", "Total Amount",
	"Advance Paid", "Remaining", "Overpaid", "Created At",
}

// WriteOrdersCSV streams the ledger of every order matching the filter.
// The remaining column is display-clamped at zero; overpayment shows in
// its own column instead of a negative balance.
func WriteOrdersCSV(ctx context.Context, w io.Writer, source OrderSource, req preorders.ListOrdersRequest) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment("# Report: Pre-order Ledger"); err != nil {
		return err
	}
	if err := streamer.writeComment(fmt.Sprintf("# Generated: %s", time.Now().UTC().Format(time.RFC3339))); err != nil {
		return err
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}

	// Page through the source so one oversized result set cannot pin
	// the whole ledger in memory.
	req.Page = 1
	if req.PerPage <= 0 {
		req.PerPage = 500
	}
	for {
		orders, total, err := source.List(ctx, req)
		if err != nil {
			return fmt.Errorf("export: list orders: %w", err)
		}
		for _, o := range orders {
			overpaid := o.RemainingAmount.LessThan(ledger.Zero())
			flightID := ""
			if o.FlightID != nil {
				flightID = strconv.FormatInt(*o.FlightID, 10)
			}
			row := []string{
				strconv.FormatInt(o.ID, 10),
				strconv.FormatInt(o.CustomerID, 10),
				flightID,
				string(o.Status),
				o.Subtotal.String(),
				o.DeliveryCharges.String(),
				o.CODAmount.String(),
				o.TotalAmount.String(),
				o.AdvancePayment.String(),
				o.RemainingAmount.ClampNonNegative().String(),
				strconv.FormatBool(overpaid),
				o.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := streamer.writeRow(row); err != nil {
				return err
			}
		}
		if req.Page*req.PerPage >= total || len(orders) == 0 {
			break
		}
		req.Page++
	}
	return streamer.flush()
}
