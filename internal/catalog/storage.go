package catalog

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/memberhub/achievement-service/internal/achievement"
)

// LoadObject reads and validates a seed document stored in Cloud Storage.
func LoadObject(ctx context.Context, client *storage.Client, bucket, object string) (*achievement.Catalog, error) {
	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	defer reader.Close()

	catalog, err := Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("catalog gs://%s/%s: %w", bucket, object, err)
	}
	return catalog, nil
}
