package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/luis314159/cis-demo/internal/cis/repository"
)

// scanDelimiter separates the item OCR code from the unit ordinal in a scan
// code. The OCR code itself may contain the delimiter, so decoding splits on
// the LAST occurrence, never the first.
const scanDelimiter = "_"

// TransitionService applies scan events to unit stage pointers.
type TransitionService struct {
	itemRepo   *repository.ItemRepository
	stageRepo  *repository.StageRepository
	objectRepo *repository.ObjectRepository
	progress   *ProgressService

	// casAttempts bounds the compare-and-swap retry loop.
	casAttempts int
}

func NewTransitionService(itemRepo *repository.ItemRepository, stageRepo *repository.StageRepository, objectRepo *repository.ObjectRepository, progress *ProgressService) *TransitionService {
	return &TransitionService{
		itemRepo:    itemRepo,
		stageRepo:   stageRepo,
		objectRepo:  objectRepo,
		progress:    progress,
		casAttempts: 3,
	}
}

// DecodeScanCode splits "<item_ocr>_<ordinal>" into its parts. All tokens but
// the last are rejoined with the delimiter so OCR codes containing "_" decode
// intact. The ordinal is 1-based and must be a positive integer.
func DecodeScanCode(scanCode string) (string, int, error) {
	pieces := strings.Split(scanCode, scanDelimiter)
	if len(pieces) < 2 {
		return "", 0, fmt.Errorf("%w: %q has no ordinal suffix", ErrScanCode, scanCode)
	}
	ocr := strings.Join(pieces[:len(pieces)-1], scanDelimiter)
	ordinal, err := strconv.Atoi(pieces[len(pieces)-1])
	if err != nil || ordinal < 1 {
		return "", 0, fmt.Errorf("%w: ordinal %q is not a positive integer", ErrScanCode, pieces[len(pieces)-1])
	}
	if ocr == "" {
		return "", 0, fmt.Errorf("%w: %q has an empty item code", ErrScanCode, scanCode)
	}
	return ocr, ordinal, nil
}

// AdvanceUnit moves the ordinal-th unit of the scanned item to the named
// stage. The write is a compare-and-swap on the unit's version column so a
// racing scan cannot be silently overwritten; after casAttempts losses it
// gives up with ErrStageConflict.
func (s *TransitionService) AdvanceUnit(ctx context.Context, scanCode, newStageName string) (uint, error) {
	ocr, ordinal, err := DecodeScanCode(scanCode)
	if err != nil {
		return 0, err
	}

	item, err := s.itemRepo.FindByOCR(ctx, ocr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("%w: ocr %q", ErrItemNotFound, ocr)
		}
		return 0, err
	}

	stage, err := s.stageRepo.FindByName(ctx, newStageName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("%w: %q", ErrStageNotFound, newStageName)
		}
		return 0, err
	}

	for attempt := 0; attempt < s.casAttempts; attempt++ {
		object, err := s.objectRepo.FindByItemOrdinal(ctx, item.ItemID, ordinal-1)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return 0, fmt.Errorf("%w: item %q has no unit #%d", ErrOrdinalOutOfRange, ocr, ordinal)
			}
			return 0, err
		}

		ok, err := s.objectRepo.CASStage(ctx, object.ObjectID, object.Version, stage.StageID)
		if err != nil {
			return 0, err
		}
		if ok {
			s.progress.InvalidateJob(ctx, item.JobID)
			return object.ObjectID, nil
		}
		// Lost the race: re-read and try again.
	}
	return 0, ErrStageConflict
}
