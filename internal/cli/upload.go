package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/realityworks/broadcast-app/internal/client"
	"github.com/realityworks/broadcast-app/internal/model"
	"github.com/realityworks/broadcast-app/internal/service"
	"github.com/realityworks/broadcast-app/internal/workspace"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload media or the profile trailer",
	}
	cmd.AddCommand(newUploadMediaCmd())
	cmd.AddCommand(newUploadTrailerCmd())
	return cmd
}

func newUploadMediaCmd() *cobra.Command {
	var content model.PostContent

	cmd := &cobra.Command{
		Use:   "media <file>",
		Short: "Publish an image or video as a new post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, func(ctx context.Context, uploads *service.UploadService) (<-chan model.UploadProgress, error) {
				media := model.Media{Path: args[0], Filename: filepath.Base(args[0])}
				return uploads.UploadMedia(ctx, media, content)
			})
		},
	}

	cmd.Flags().StringVarP(&content.Title, "title", "t", "", "Post title")
	cmd.Flags().StringVarP(&content.Caption, "caption", "c", "", "Post caption")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newUploadTrailerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trailer <file>",
		Short: "Replace the profile trailer with a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, func(ctx context.Context, uploads *service.UploadService) (<-chan model.UploadProgress, error) {
				return uploads.UploadTrailer(ctx, args[0])
			})
		},
	}
}

type startFunc func(ctx context.Context, uploads *service.UploadService) (<-chan model.UploadProgress, error)

func runUpload(cmd *cobra.Command, start startFunc) error {
	log := newLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Broadcast.IsHosted() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	api, _, err := client.NewPostAPI(cfg, redisClient, log)
	if err != nil {
		return err
	}

	ws, err := workspace.New(cfg.Workspace.Dir, log)
	if err != nil {
		return err
	}

	uploads, err := service.NewUploadService(api, client.NewHTTPTransferer(cfg.Transfer.Timeout, log), ws, validator.New(), log)
	if err != nil {
		return err
	}

	stream, err := start(ctx, uploads)
	if err != nil {
		return fmt.Errorf("upload not started: %w", err)
	}

	final, err := render(cmd.ErrOrStderr(), stream)
	if err != nil {
		return err
	}

	if final.PostID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Published post %s\n", final.PostID)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Trailer updated")
	}
	return nil
}
