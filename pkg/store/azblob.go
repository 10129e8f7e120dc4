package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// AzureBlobConfig contains configuration for the Azure Blob Storage store.
// ConnectionString takes precedence over AccountURL.
type AzureBlobConfig struct {
	// Container holds one JSON blob per prediction.
	// Default: "predictions"
	Container string

	// ConnectionString authenticates with a storage account key
	ConnectionString string

	// AccountURL authenticates with the default Azure credential chain
	// (e.g., "https://account.blob.core.windows.net")
	AccountURL string
}

// AzureBlob implements Store on an Azure Blob Storage container. Each record
// is a JSON blob named "<prediction id>.json".
type AzureBlob struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

const blobSuffix = ".json"

// NewAzureBlob creates the client and ensures the container exists.
func NewAzureBlob(ctx context.Context, config AzureBlobConfig, logger *slog.Logger) (*AzureBlob, error) {
	if config.Container == "" {
		config.Container = DefaultTableName
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case config.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(config.ConnectionString, nil)
	case config.AccountURL != "":
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return nil, newError("azblob", "credential", credErr)
		}
		client, err = azblob.NewClient(config.AccountURL, cred, nil)
	default:
		err = errors.New("connection string or account url required")
	}
	if err != nil {
		return nil, newError("azblob", "open", err)
	}

	a := &AzureBlob{
		client:    client,
		container: config.Container,
		logger:    logger.With("component", "store.azblob"),
	}

	if _, err := client.CreateContainer(ctx, a.container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, newError("azblob", "create_container", err)
		}
	}

	a.logger.Info("Azure Blob store initialized", "container", a.container)
	return a, nil
}

func blobName(predictionID string) (string, error) {
	if predictionID == "" || strings.ContainsAny(predictionID, "/\\") || strings.Contains(predictionID, "..") {
		return "", fmt.Errorf("invalid prediction id %q", predictionID)
	}
	return predictionID + blobSuffix, nil
}

// Put implements Store.
func (a *AzureBlob) Put(ctx context.Context, record *Record) error {
	if err := validateRecord(record); err != nil {
		return newError("azblob", "put", err)
	}
	name, err := blobName(record.PredictionID)
	if err != nil {
		return newError("azblob", "put", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return newError("azblob", "put", err)
	}

	contentType := "application/json"
	_, err = a.client.UploadBuffer(ctx, a.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return newError("azblob", "put", err)
	}
	return nil
}

// Get implements Store.
func (a *AzureBlob) Get(ctx context.Context, predictionID string) (*Record, error) {
	name, err := blobName(predictionID)
	if err != nil {
		return nil, ErrNotFound
	}

	resp, err := a.client.DownloadStream(ctx, a.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, newError("azblob", "get", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, newError("azblob", "get", err)
	}

	var r Record
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		return nil, newError("azblob", "get", err)
	}
	return &r, nil
}

// DeleteBefore implements Store. Blob creation time stands in for the
// record's CreatedAt so pruning does not download every blob.
func (a *AzureBlob) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := a.each(ctx, func(name string, created time.Time) error {
		if !created.Before(cutoff) {
			return nil
		}
		if _, err := a.client.DeleteBlob(ctx, a.container, name, nil); err != nil {
			if bloberror.HasCode(err, bloberror.BlobNotFound) {
				return nil
			}
			return err
		}
		deleted++
		return nil
	})
	if err != nil {
		return deleted, newError("azblob", "delete", err)
	}
	return deleted, nil
}

// Count implements Store.
func (a *AzureBlob) Count(ctx context.Context) (int64, error) {
	var count int64
	err := a.each(ctx, func(string, time.Time) error {
		count++
		return nil
	})
	if err != nil {
		return 0, newError("azblob", "count", err)
	}
	return count, nil
}

func (a *AzureBlob) each(ctx context.Context, fn func(name string, created time.Time) error) error {
	pager := a.client.NewListBlobsFlatPager(a.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || !strings.HasSuffix(*item.Name, blobSuffix) {
				continue
			}
			var created time.Time
			if item.Properties != nil && item.Properties.CreationTime != nil {
				created = *item.Properties.CreationTime
			}
			if err := fn(*item.Name, created); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close implements Store.
func (a *AzureBlob) Close() error {
	return nil
}
