package gdocs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf16"

	"github.com/statusdoc/statusdoc/internal/format"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// AppendError is a failed document write. The run must not claim success
// when one of these surfaces; authorization and quota problems land here.
type AppendError struct {
	Op         string // which write step failed
	StatusCode int    // HTTP status when known
	Err        error
}

func (e *AppendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("document append failed (%s): HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("document append failed (%s): %v", e.Op, e.Err)
}

func (e *AppendError) Unwrap() error {
	return e.Err
}

// Appender inserts rendered report blocks at the end of a Google Doc. It
// only ever appends; prior content is never edited or reordered.
//
// Append is deliberately not idempotent: re-running the pipeline for the
// same window appends a duplicate block. Callers control idempotency by
// scheduling exactly one run per window.
type Appender struct {
	svc    *docs.Service
	docID  string
	logger *slog.Logger
}

// NewAppender creates an Appender authenticated with a service account
// credentials file holding document write scope.
func NewAppender(ctx context.Context, credentialsFile, docID string, logger *slog.Logger) (*Appender, error) {
	if logger == nil {
		logger = slog.Default()
	}

	svc, err := docs.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(docs.DocumentsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Docs client: %w", err)
	}

	return &Appender{svc: svc, docID: docID, logger: logger}, nil
}

// Append writes the block after the current end of the document. The
// insertion index is re-resolved from the live document immediately before
// writing, so prior appends growing the document never invalidate it.
//
// The write is batched: either the whole block lands or the batch fails as
// a unit. Requests are not retried because a batch whose outcome is unknown
// could be applied twice.
func (a *Appender) Append(ctx context.Context, block format.Block) error {
	endIndex, err := a.endIndex(ctx)
	if err != nil {
		return err
	}

	a.logger.Debug("Appending report block", "kind", block.Kind.String(), "endIndex", endIndex)

	if block.Kind == format.KindTable {
		return a.appendTable(ctx, block, endIndex)
	}
	return a.appendBullets(ctx, block, endIndex)
}

// endIndex returns the end index of the document's last structural element.
func (a *Appender) endIndex(ctx context.Context) (int64, error) {
	doc, err := a.svc.Documents.Get(a.docID).Context(ctx).Do()
	if err != nil {
		return 0, wrapAppendError("get-document", err)
	}

	content := doc.Body.Content
	if len(content) == 0 {
		return 0, &AppendError{Op: "get-document", Err: fmt.Errorf("document %s has no body content", a.docID)}
	}
	return content[len(content)-1].EndIndex, nil
}

// appendBullets inserts the heading, period line, and one bulleted section
// per category in a single batch.
func (a *Appender) appendBullets(ctx context.Context, block format.Block, endIndex int64) error {
	heading := block.Heading + "\n"

	requests := []*docs.Request{
		pageBreakAt(endIndex - 1),
		insertTextAt(endIndex, heading),
		headingStyle(endIndex, endIndex+textLen(heading)),
	}

	cursor := endIndex + textLen(heading)

	period := block.Period + "\n"
	requests = append(requests, insertTextAt(cursor, period))
	cursor += textLen(period)

	for _, section := range block.Sections {
		title := section.Title + "\n"
		requests = append(requests, insertTextAt(cursor, title))
		cursor += textLen(title)

		bulletText := ""
		for _, item := range section.Items {
			bulletText += item + "\n"
		}
		requests = append(requests,
			insertTextAt(cursor, bulletText),
			&docs.Request{
				CreateParagraphBullets: &docs.CreateParagraphBulletsRequest{
					Range: &docs.Range{
						StartIndex: cursor,
						EndIndex:   cursor + textLen(bulletText),
					},
					BulletPreset: "BULLET_DISC_CIRCLE_SQUARE",
				},
			})
		cursor += textLen(bulletText)
	}

	return a.batchUpdate(ctx, "insert-bullets", requests)
}

// appendTable inserts the heading and an empty single-column table, then
// re-reads the document to find the new table's cell positions and fills
// the cells in a second batch. Cell fills run in reverse document order so
// earlier indexes stay valid as text is inserted.
func (a *Appender) appendTable(ctx context.Context, block format.Block, endIndex int64) error {
	heading := block.Heading + "\n"
	rows := block.TableRows()

	requests := []*docs.Request{
		pageBreakAt(endIndex - 1),
		insertTextAt(endIndex, heading),
		headingStyle(endIndex, endIndex+textLen(heading)),
		{
			InsertTable: &docs.InsertTableRequest{
				Rows:     int64(len(rows)),
				Columns:  1,
				Location: &docs.Location{Index: endIndex + textLen(heading)},
			},
		},
	}

	if err := a.batchUpdate(ctx, "insert-table", requests); err != nil {
		return err
	}

	cellIndexes, err := a.lastTableCellIndexes(ctx, len(rows))
	if err != nil {
		return err
	}

	var fills []*docs.Request
	for i := len(rows) - 1; i >= 0; i-- {
		fills = append(fills, insertTextAt(cellIndexes[i], rows[i]))
	}

	return a.batchUpdate(ctx, "fill-table", fills)
}

// lastTableCellIndexes re-reads the document and returns the start index of
// the first paragraph in each cell of the most recently inserted table.
func (a *Appender) lastTableCellIndexes(ctx context.Context, wantRows int) ([]int64, error) {
	doc, err := a.svc.Documents.Get(a.docID).Context(ctx).Do()
	if err != nil {
		return nil, wrapAppendError("locate-table", err)
	}

	var table *docs.Table
	for _, elem := range doc.Body.Content {
		if elem.Table != nil {
			table = elem.Table
		}
	}
	if table == nil {
		return nil, &AppendError{Op: "locate-table", Err: errors.New("no table found in document after insert")}
	}
	if len(table.TableRows) != wantRows {
		return nil, &AppendError{Op: "locate-table",
			Err: fmt.Errorf("last table has %d rows, expected %d", len(table.TableRows), wantRows)}
	}

	indexes := make([]int64, 0, wantRows)
	for _, row := range table.TableRows {
		if len(row.TableCells) == 0 || len(row.TableCells[0].Content) == 0 {
			return nil, &AppendError{Op: "locate-table", Err: errors.New("table row has no cell content")}
		}
		indexes = append(indexes, row.TableCells[0].Content[0].StartIndex)
	}
	return indexes, nil
}

// batchUpdate applies one atomic batch of write requests.
func (a *Appender) batchUpdate(ctx context.Context, op string, requests []*docs.Request) error {
	_, err := a.svc.Documents.BatchUpdate(a.docID, &docs.BatchUpdateDocumentRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return wrapAppendError(op, err)
	}

	a.logger.Debug("Batch update applied", "op", op, "requests", len(requests))
	return nil
}

// wrapAppendError attaches the HTTP status to API failures.
func wrapAppendError(op string, err error) *AppendError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &AppendError{Op: op, StatusCode: apiErr.Code, Err: err}
	}
	return &AppendError{Op: op, Err: err}
}

func insertTextAt(index int64, text string) *docs.Request {
	return &docs.Request{
		InsertText: &docs.InsertTextRequest{
			Location: &docs.Location{Index: index},
			Text:     text,
		},
	}
}

func pageBreakAt(index int64) *docs.Request {
	return &docs.Request{
		InsertPageBreak: &docs.InsertPageBreakRequest{
			Location: &docs.Location{Index: index},
		},
	}
}

func headingStyle(start, end int64) *docs.Request {
	return &docs.Request{
		UpdateTextStyle: &docs.UpdateTextStyleRequest{
			Range: &docs.Range{StartIndex: start, EndIndex: end},
			TextStyle: &docs.TextStyle{
				Bold:               true,
				FontSize:           &docs.Dimension{Magnitude: 20, Unit: "PT"},
				WeightedFontFamily: &docs.WeightedFontFamily{FontFamily: "Arial"},
			},
			Fields: "bold,fontSize,weightedFontFamily",
		},
	}
}

// textLen counts the UTF-16 code units of s, which is how the Docs API
// measures indexes. Byte or rune counts drift as soon as a summary item
// contains anything outside the BMP.
func textLen(s string) int64 {
	return int64(len(utf16.Encode([]rune(s))))
}
