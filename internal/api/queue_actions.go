package api

import (
	"errors"

	"mediaconv/internal/queue"
)

// QueueActionService captures the queue operations per-item retry needs.
type QueueActionService interface {
	Item(id string) (queue.Item, bool)
	Retry(ids ...string) ([]queue.Item, error)
}

type RetryItemOutcome string

const (
	RetryItemRetried       RetryItemOutcome = "retried"
	RetryItemNotFound      RetryItemOutcome = "not_found"
	RetryItemNotFailed     RetryItemOutcome = "not_failed"
	RetryItemAlreadyActive RetryItemOutcome = "already_active"
)

type RetryItemResult struct {
	ID      string           `json:"id"`
	Outcome RetryItemOutcome `json:"outcome"`
	NewID   string           `json:"newId,omitempty"`
	Attempt int              `json:"attempt,omitempty"`
}

type RetryItemsResult struct {
	RetriedCount int               `json:"retriedCount"`
	Items        []RetryItemResult `json:"items"`
}

// RetryFailedItemsByID retries each errored item and reports a per-ID
// outcome. With no IDs every errored item is retried.
func RetryFailedItemsByID(service QueueActionService, ids []string) (RetryItemsResult, error) {
	if len(ids) == 0 {
		retried, err := service.Retry()
		if err != nil {
			return RetryItemsResult{}, err
		}
		result := RetryItemsResult{Items: make([]RetryItemResult, 0, len(retried))}
		for _, item := range retried {
			result.Items = append(result.Items, RetryItemResult{Outcome: RetryItemRetried, NewID: item.ID, Attempt: item.Attempt})
		}
		result.RetriedCount = len(retried)
		return result, nil
	}

	result := RetryItemsResult{Items: make([]RetryItemResult, 0, len(ids))}
	for _, id := range ids {
		item, ok := service.Item(id)
		if !ok {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFound})
			continue
		}
		if item.Status != queue.StatusError {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFailed})
			continue
		}
		retried, err := service.Retry(id)
		if err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemNotFound})
				continue
			}
			return RetryItemsResult{}, err
		}
		if len(retried) == 0 {
			result.Items = append(result.Items, RetryItemResult{ID: id, Outcome: RetryItemAlreadyActive})
			continue
		}
		result.RetriedCount++
		result.Items = append(result.Items, RetryItemResult{
			ID:      id,
			Outcome: RetryItemRetried,
			NewID:   retried[0].ID,
			Attempt: retried[0].Attempt,
		})
	}
	return result, nil
}
