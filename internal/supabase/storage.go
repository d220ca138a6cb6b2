package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	storage "github.com/supabase-community/storage-go"

	"ai-estimate-backend/internal/models"
)

type StorageClient struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

func NewStorageClient(supabaseURL, serviceRoleKey, bucket string) (*StorageClient, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	client := storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil)

	return &StorageClient{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

// EstimateFilePath is users/{uid}/estimates/{execution_id}/{filename}.
func EstimateFilePath(uid, executionID, filename string) string {
	return fmt.Sprintf("users/%s/estimates/%s/%s", uid, executionID, path.Base(filename))
}

// DraftPath holds the last submitted form of a user.
func DraftPath(uid string) string {
	return fmt.Sprintf("users/%s/drafts/latest.json", uid)
}

func (s *StorageClient) UploadFile(uid, executionID, filename, contentType string, data []byte) (string, string, error) {
	storagePath := EstimateFilePath(uid, executionID, filename)

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}

	return storagePath, s.GetPublicURL(storagePath), nil
}

func (s *StorageClient) GetPublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		s.baseURL, s.bucket, storagePath)
}

func (s *StorageClient) SaveDraft(uid string, draft models.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}

	contentType := "application/json"
	upsert := true
	_, err = s.client.UploadFile(s.bucket, DraftPath(uid), bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (s *StorageClient) LoadDraft(uid string) (*models.Draft, error) {
	data, err := s.client.DownloadFile(s.bucket, DraftPath(uid))
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download draft: %w", err)
	}

	var draft models.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	return &draft, nil
}

// DeleteUserFiles removes every object under users/{uid}/.
func (s *StorageClient) DeleteUserFiles(uid string) error {
	paths, err := s.listRecursive(fmt.Sprintf("users/%s", uid))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}
	if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

// listRecursive walks folders; the storage API lists one level at a time and
// reports folders as entries without an id.
func (s *StorageClient) listRecursive(prefix string) ([]string, error) {
	entries, err := s.client.ListFiles(s.bucket, prefix, storage.FileSearchOptions{
		Limit: 1000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		full := prefix + "/" + entry.Name
		if entry.Id == "" {
			nested, err := s.listRecursive(full)
			if err != nil {
				return nil, err
			}
			paths = append(paths, nested...)
			continue
		}
		paths = append(paths, full)
	}
	return paths, nil
}
