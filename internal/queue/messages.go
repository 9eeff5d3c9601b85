package queue

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator"
)

// CrawlJob asks a worker to crawl the wiki into the graph GraphID. Zero
// values fall back to the worker configuration.
type CrawlJob struct {
	GraphID         string   `json:"graph_id" validate:"required,max=64"`
	Seeds           []string `json:"seeds,omitempty" validate:"omitempty,dive,required"`
	Budget          int      `json:"budget,omitempty" validate:"min=0,max=10000"`
	Campaign        int      `json:"campaign,omitempty" validate:"min=0"`
	AdmitDiscovered bool     `json:"admit_discovered,omitempty"`
	SkipMetadata    bool     `json:"skip_metadata,omitempty"`
}

// DeleteJob removes a stored graph and its artifacts.
type DeleteJob struct {
	GraphID string `json:"graph_id" validate:"required"`
}

// GraphEvent is published on the events exchange after a job finished.
type GraphEvent struct {
	GraphID  string `json:"graph_id"`
	Status   string `json:"status"`
	Entities int    `json:"entities,omitempty"`
	Edges    int    `json:"edges,omitempty"`
	Error    string `json:"error,omitempty"`
}

var validate = validator.New()

func decode[T any](body []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(body, out); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}
	return out, nil
}

// EnqueueCrawl validates job and publishes it to the crawl queue.
func EnqueueCrawl(ch Channel, job CrawlJob) error {
	if err := validate.Struct(job); err != nil {
		return fmt.Errorf("invalid crawl job: %w", err)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return PublishFIFO(ch, CrawlQueue, data)
}

// EnqueueDelete publishes a delete job.
func EnqueueDelete(ch Channel, graphID string) error {
	data, err := json.Marshal(DeleteJob{GraphID: graphID})
	if err != nil {
		return err
	}
	return PublishFIFO(ch, DeleteQueue, data)
}
