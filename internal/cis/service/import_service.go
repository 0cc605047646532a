package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/luis314159/cis-demo/internal/cis/entity"
	"github.com/luis314159/cis-demo/internal/cis/repository"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// importColumns are the headers the plant's nesting software exports. The
// sheet format is an external convention and is matched verbatim.
var importColumns = []string{
	"Job", "Item", "Material", "Espesor", "Cantidad", "OCR", "Clase",
	"Longitud", "Ancho", "Alto", "Volumen", "Área Superficial",
}

// ImportError carries a client-facing validation failure with the offending
// identifiers listed in full.
type ImportError struct {
	Reason  string   `json:"reason"`
	Details []string `json:"details,omitempty"`
}

func (e *ImportError) Error() string {
	if len(e.Details) == 0 {
		return e.Reason
	}
	return e.Reason + ": " + strings.Join(e.Details, ", ")
}

// ImportSummary reports what a bulk import created.
type ImportSummary struct {
	JobCode        string `json:"job_code"`
	JobCreated     bool   `json:"job_created"`
	ItemsCreated   int    `json:"items_created"`
	ObjectsCreated int    `json:"objects_created"`
}

type importRow struct {
	job             string
	item            string
	material        string
	espesor         float64
	cantidad        int
	ocr             string
	clase           string
	longitud        float64
	ancho           float64
	alto            float64
	volumen         float64
	areaSuperficial float64
}

// ImportService turns a nesting sheet (CSV or XLSX) into a job with items
// and one unit per declared quantity. Units start at the first stage of their
// item's pipeline; a process without a pipeline rejects the whole file.
type ImportService struct {
	jobRepo     *repository.JobRepository
	itemRepo    *repository.ItemRepository
	objectRepo  *repository.ObjectRepository
	processRepo *repository.ProcessRepository
	logger      *zap.Logger
}

func NewImportService(jobRepo *repository.JobRepository, itemRepo *repository.ItemRepository, objectRepo *repository.ObjectRepository, processRepo *repository.ProcessRepository, logger *zap.Logger) *ImportService {
	return &ImportService{
		jobRepo:     jobRepo,
		itemRepo:    itemRepo,
		objectRepo:  objectRepo,
		processRepo: processRepo,
		logger:      logger,
	}
}

// ImportFile dispatches on the file extension. Anything that is not .xlsx is
// treated as CSV, matching what the office actually uploads.
func (s *ImportService) ImportFile(ctx context.Context, filename string, r io.Reader) (*ImportSummary, error) {
	var records [][]string
	var err error
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		records, err = readXLSX(r)
	} else {
		records, err = readCSV(r)
	}
	if err != nil {
		return nil, &ImportError{Reason: "could not read file: " + err.Error()}
	}

	rows, err := s.parseRows(records)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, rows)
}

// readCSV decodes the upload as UTF-8, falling back to latin1 when the bytes
// are not valid UTF-8 (older nesting exports use Windows/latin1 encodings).
func readCSV(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), raw)
		if err != nil {
			return nil, err
		}
		raw = decoded
	}
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

func (s *ImportService) parseRows(records [][]string) ([]importRow, error) {
	if len(records) < 2 {
		return nil, &ImportError{Reason: "file has no data rows"}
	}

	colIndex := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		colIndex[strings.TrimSpace(h)] = i
	}
	var missing []string
	for _, col := range importColumns {
		if _, ok := colIndex[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &ImportError{Reason: "missing columns", Details: missing}
	}

	cell := func(record []string, col string) string {
		idx := colIndex[col]
		if idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var rows []importRow
	jobCodes := make(map[string]bool)
	seenItems := make(map[string]bool)
	var duplicates []string

	for n, record := range records[1:] {
		row := importRow{
			job:      cell(record, "Job"),
			item:     cell(record, "Item"),
			material: cell(record, "Material"),
			ocr:      cell(record, "OCR"),
			clase:    cell(record, "Clase"),
		}
		if row.job == "" && row.item == "" {
			continue // trailing blank line
		}

		var err error
		if row.cantidad, err = strconv.Atoi(cell(record, "Cantidad")); err != nil || row.cantidad < 1 {
			return nil, &ImportError{Reason: fmt.Sprintf("row %d: Cantidad must be a positive integer", n+2)}
		}
		row.espesor = parseFloat(cell(record, "Espesor"))
		row.longitud = parseFloat(cell(record, "Longitud"))
		row.ancho = parseFloat(cell(record, "Ancho"))
		row.alto = parseFloat(cell(record, "Alto"))
		row.volumen = parseFloat(cell(record, "Volumen"))
		row.areaSuperficial = parseFloat(cell(record, "Área Superficial"))

		jobCodes[row.job] = true
		key := row.job + "\x00" + row.item
		if seenItems[key] {
			duplicates = append(duplicates, row.item)
		}
		seenItems[key] = true
		rows = append(rows, row)
	}

	if len(jobCodes) != 1 {
		var codes []string
		for code := range jobCodes {
			codes = append(codes, code)
		}
		return nil, &ImportError{Reason: "all rows must share one Job code", Details: codes}
	}
	if len(duplicates) > 0 {
		return nil, &ImportError{Reason: "duplicated Job+Item combinations", Details: duplicates}
	}
	return rows, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	return v
}

func (s *ImportService) persist(ctx context.Context, rows []importRow) (*ImportSummary, error) {
	// Resolve processes and their first pipeline stages up front so a file
	// referencing an unordered process fails before anything is written.
	firstStage := make(map[string]uint)
	processID := make(map[string]uint)
	var unordered []string
	for _, row := range rows {
		if _, ok := processID[row.clase]; ok {
			continue
		}
		process, err := s.processRepo.FindByName(ctx, row.clase)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				process = &entity.Process{ProcessName: row.clase}
				if err := s.processRepo.Create(ctx, process); err != nil {
					return nil, fmt.Errorf("create process %q: %w", row.clase, err)
				}
			} else {
				return nil, err
			}
		}
		processID[row.clase] = process.ProcessID

		edges, err := s.processRepo.ListPipeline(ctx, process.ProcessID)
		if err != nil {
			return nil, err
		}
		if len(edges) == 0 {
			unordered = append(unordered, row.clase)
			continue
		}
		firstStage[row.clase] = edges[0].StageID
	}
	if len(unordered) > 0 {
		return nil, &ImportError{
			Reason:  "processes have no stage order defined; order their stages before importing",
			Details: unordered,
		}
	}

	jobCode := rows[0].job
	summary := &ImportSummary{JobCode: jobCode}

	job, err := s.jobRepo.FindByCode(ctx, jobCode)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		job = &entity.Job{JobCode: jobCode}
		if err := s.jobRepo.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("create job %q: %w", jobCode, err)
		}
		summary.JobCreated = true
	}

	existing, err := s.itemRepo.ListByJob(ctx, job.JobID)
	if err != nil {
		return nil, err
	}
	existingNames := make(map[string]bool, len(existing))
	for _, item := range existing {
		existingNames[item.ItemName] = true
	}

	for _, row := range rows {
		if existingNames[row.item] {
			continue // re-import of a known item is a no-op
		}
		item := &entity.Item{
			JobID:           job.JobID,
			ProcessID:       processID[row.clase],
			ItemName:        row.item,
			OCR:             row.ocr,
			Material:        row.material,
			Espesor:         row.espesor,
			Longitud:        row.longitud,
			Ancho:           row.ancho,
			Alto:            row.alto,
			Volumen:         row.volumen,
			AreaSuperficial: row.areaSuperficial,
			Cantidad:        row.cantidad,
		}
		if err := s.itemRepo.Create(ctx, item); err != nil {
			return nil, fmt.Errorf("create item %q: %w", row.item, err)
		}
		summary.ItemsCreated++

		objects := make([]entity.Object, row.cantidad)
		for i := range objects {
			// Initial stage is derived from the item's own pipeline, never a
			// hard-coded constant.
			objects[i] = entity.Object{ItemID: item.ItemID, CurrentStage: firstStage[row.clase]}
		}
		if err := s.objectRepo.CreateBatch(ctx, objects); err != nil {
			return nil, fmt.Errorf("create objects for item %q: %w", row.item, err)
		}
		summary.ObjectsCreated += row.cantidad
	}

	s.logger.Info("Bulk import completed",
		zap.String("job_code", jobCode),
		zap.Bool("job_created", summary.JobCreated),
		zap.Int("items_created", summary.ItemsCreated),
		zap.Int("objects_created", summary.ObjectsCreated),
	)
	return summary, nil
}
