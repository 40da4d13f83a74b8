package azure

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/coveworks/bulk-restore/internal/retry"
	"github.com/coveworks/bulk-restore/internal/util"
)

// Store keeps run artifacts in an Azure blob container.
type Store struct {
	client     *azblob.Client
	account    string
	container  string
	endpoint   string // e.g. https://<account>.blob.core.windows.net/
	sas        string // raw SAS without leading "?"
	authViaSAS bool
	ro         retry.Options
}

func (s *Store) Name() string { return "azure" }

// Put uploads the artifact and validates it (HEAD with SAS, list otherwise).
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.ensureContainer(ctx); err != nil {
		return fmt.Errorf("ensure container: %w", err)
	}
	key = normalizeKey(key)

	sum := util.SHA256Bytes(data)
	size := int64(len(data))

	upStart := time.Now()
	upAttempt := 0
	uploadOnce := func(ctx context.Context) error {
		upAttempt++
		log.Debug().
			Str("action", "azure_upload").
			Str("container", s.container).
			Str("key", key).
			Int("attempt", upAttempt).
			Msg("starting attempt")

		_, err := s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
			Metadata: map[string]*string{"sha256": to.Ptr(sum)},
		})
		if err != nil {
			log.Debug().Err(err).Str("action", "azure_upload").Str("container", s.container).Str("key", key).
				Int("attempt", upAttempt).Msg("attempt failed")
			return err
		}

		log.Debug().Str("action", "azure_upload").Str("container", s.container).Str("key", key).
			Int("attempt", upAttempt).Msg("attempt succeeded")
		return nil
	}
	if err := retry.Do(ctx, s.ro, s.isAzRetryable, uploadOnce); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	log.Info().Str("action", "azure_upload").Str("container", s.container).Str("key", key).
		Int("attempts", upAttempt).Dur("elapsed_ms", time.Since(upStart)).Msg("upload OK")

	// Post-upload validation.
	if s.authViaSAS {
		headStart := time.Now()
		headAttempt := 0
		headOnce := func(ctx context.Context) error {
			headAttempt++
			log.Debug().Str("action", "azure_head").Str("container", s.container).Str("key", key).
				Int("attempt", headAttempt).Msg("starting attempt")

			remoteSize, remoteSHA, err := s.headSizeAndSHA(ctx, key)
			if err != nil {
				log.Debug().Err(err).Str("action", "azure_head").Str("container", s.container).Str("key", key).
					Int("attempt", headAttempt).Msg("attempt failed")
				return err
			}
			if remoteSize != size {
				return fmt.Errorf("size mismatch: local=%d, remote=%d", size, remoteSize)
			}
			if remoteSHA == "" {
				return fmt.Errorf("missing metadata: sha256")
			}
			if remoteSHA != sum {
				return fmt.Errorf("sha256 mismatch: local=%s, remote=%s", sum, remoteSHA)
			}

			log.Debug().Str("action", "azure_head").Str("container", s.container).Str("key", key).
				Int("attempt", headAttempt).Int64("remote_size", remoteSize).Msg("attempt succeeded")
			return nil
		}
		if err := retry.Do(ctx, s.ro, s.isAzRetryable, headOnce); err != nil {
			return fmt.Errorf("validate (head): %w", err)
		}
		log.Info().Str("action", "azure_head").Str("container", s.container).Str("key", key).
			Int("attempts", headAttempt).Dur("elapsed_ms", time.Since(headStart)).
			Msg("validation OK (sha256 & size)")
	} else {
		listStart := time.Now()
		listAttempt := 0
		validateOnce := func(ctx context.Context) error {
			listAttempt++
			log.Debug().Str("action", "azure_list_validate").Str("container", s.container).Str("key", key).
				Int("attempt", listAttempt).Msg("starting attempt")

			found, remoteSize, err := s.validateSizeByList(ctx, key)
			if err != nil {
				log.Debug().Err(err).Str("action", "azure_list_validate").Str("container", s.container).Str("key", key).
					Int("attempt", listAttempt).Msg("attempt failed")
				return err
			}
			if !found {
				return fmt.Errorf("uploaded blob not found at %q", key)
			}
			if remoteSize != size {
				return fmt.Errorf("size mismatch: local=%d, remote=%d", size, remoteSize)
			}

			log.Debug().Str("action", "azure_list_validate").Str("container", s.container).Str("key", key).
				Int("attempt", listAttempt).Int64("remote_size", remoteSize).Msg("attempt succeeded")
			return nil
		}
		if err := retry.Do(ctx, s.ro, s.isAzRetryable, validateOnce); err != nil {
			return fmt.Errorf("validate (list): %w", err)
		}
		log.Info().Str("action", "azure_list_validate").Str("container", s.container).Str("key", key).
			Int("attempts", listAttempt).Dur("elapsed_ms", time.Since(listStart)).Msg("validation OK (size)")
	}

	return nil
}

// Get downloads the artifact at key with retries.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	key = normalizeKey(key)

	var data []byte
	dlStart := time.Now()
	dlAttempt := 0
	downloadOnce := func(ctx context.Context) error {
		dlAttempt++
		log.Debug().Str("action", "azure_download").Str("container", s.container).Str("key", key).
			Int("attempt", dlAttempt).Msg("starting attempt")

		resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
		if err != nil {
			log.Debug().Err(err).Str("action", "azure_download").Str("container", s.container).Str("key", key).
				Int("attempt", dlAttempt).Msg("attempt failed")
			return err
		}
		defer func() {
			if cerr := resp.Body.Close(); cerr != nil {
				log.Warn().Err(cerr).Str("key", key).Msg("failed to close download stream")
			}
		}()
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			log.Debug().Err(err).Str("action", "azure_download").Str("container", s.container).Str("key", key).
				Int("attempt", dlAttempt).Msg("attempt failed")
			return err
		}

		log.Debug().Str("action", "azure_download").Str("container", s.container).Str("key", key).
			Int("attempt", dlAttempt).Msg("attempt succeeded")
		return nil
	}
	if err := retry.Do(ctx, s.ro, s.isAzRetryable, downloadOnce); err != nil {
		return nil, err
	}
	log.Info().Str("action", "azure_download").Str("container", s.container).Str("key", key).
		Int("attempts", dlAttempt).Dur("elapsed_ms", time.Since(dlStart)).Msg("download OK")
	return data, nil
}

func normalizeKey(k string) string {
	return strings.TrimPrefix(k, "/")
}
