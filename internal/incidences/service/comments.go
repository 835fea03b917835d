package service

import (
	"context"

	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	"techo_backend/internal/incidences/domain"
	"techo_backend/internal/incidences/repository"
	"techo_backend/internal/incidences/transport"
	"techo_backend/platform/apperr"
	"techo_backend/platform/sanitize"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxParallelUploads = 3

// AddComment stores a comment and then uploads its media. The comment is
// kept even when uploads fail; the response lists every failed item.
func (s *Service) AddComment(ctx context.Context, id, authorID uuid.UUID, body string, files []evidence.File) (transport.AddCommentResponse, error) {
	body = sanitize.Text(body)
	if body == "" {
		return transport.AddCommentResponse{}, apperr.Validation("comment body is required")
	}

	inc, err := s.loadWritable(ctx, id, authorID)
	if err != nil {
		return transport.AddCommentResponse{}, err
	}

	comment, err := s.repo.CreateComment(ctx, repository.CommentParams{
		IncidenceID: inc.ID,
		AuthorID:    authorID,
		Body:        body,
		At:          s.now().UTC(),
	})
	if err != nil {
		return transport.AddCommentResponse{}, err
	}

	stored, failed := s.storeMedia(ctx, inc.ID, evidence.Owner{Kind: evidence.OwnerComment, ID: comment.ID}, authorID, files)

	s.bus.Publish(ctx, events.CommentAdded{
		BaseEvent:   events.NewBaseEvent(),
		IncidenceID: inc.ID,
		CommentID:   comment.ID,
		AuthorID:    authorID,
		MediaCount:  len(stored),
	})

	return transport.AddCommentResponse{
		Comment:        toCommentResponse(comment, s.signMedia(ctx, stored)),
		Failed:         failed,
		AllMediaFailed: len(files) > 0 && len(stored) == 0,
	}, nil
}

// AttachMedia uploads evidence owned directly by the incidence.
func (s *Service) AttachMedia(ctx context.Context, id, authorID uuid.UUID, files []evidence.File) (transport.AttachMediaResponse, error) {
	if len(files) == 0 {
		return transport.AttachMediaResponse{}, apperr.Validation("at least one file is required")
	}
	inc, err := s.loadWritable(ctx, id, authorID)
	if err != nil {
		return transport.AttachMediaResponse{}, err
	}

	stored, failed := s.storeMedia(ctx, inc.ID, evidence.Owner{Kind: evidence.OwnerIncidence, ID: inc.ID}, authorID, files)
	return transport.AttachMediaResponse{Media: s.signMedia(ctx, stored), Failed: failed}, nil
}

// ListComments returns the comments of an incidence with their media.
func (s *Service) ListComments(ctx context.Context, actorID, id uuid.UUID) (transport.CommentListResponse, error) {
	if _, _, err := s.loadVisible(ctx, actorID, id); err != nil {
		return transport.CommentListResponse{}, err
	}
	comments, err := s.repo.ListComments(ctx, id)
	if err != nil {
		return transport.CommentListResponse{}, err
	}
	media, err := s.repo.ListMedia(ctx, id)
	if err != nil {
		return transport.CommentListResponse{}, err
	}

	byComment := make(map[uuid.UUID][]repository.Media)
	for _, m := range media {
		if m.OwnerKind == repository.MediaOwnerComment {
			byComment[m.OwnerID] = append(byComment[m.OwnerID], m)
		}
	}

	items := make([]transport.CommentResponse, 0, len(comments))
	for _, c := range comments {
		items = append(items, toCommentResponse(c, s.signMedia(ctx, byComment[c.ID])))
	}
	return transport.CommentListResponse{Items: items}, nil
}

// ListMedia returns every media item of an incidence with fresh signed URLs.
func (s *Service) ListMedia(ctx context.Context, actorID, id uuid.UUID) (transport.MediaListResponse, error) {
	if _, _, err := s.loadVisible(ctx, actorID, id); err != nil {
		return transport.MediaListResponse{}, err
	}
	media, err := s.repo.ListMedia(ctx, id)
	if err != nil {
		return transport.MediaListResponse{}, err
	}
	return transport.MediaListResponse{Items: s.signMedia(ctx, media)}, nil
}

// loadWritable checks existence first, then permission, then that the
// incidence still accepts comments.
func (s *Service) loadWritable(ctx context.Context, id, actorID uuid.UUID) (repository.Incidence, error) {
	role, err := s.users.RoleOf(ctx, actorID)
	if err != nil {
		return repository.Incidence{}, err
	}
	inc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Incidence{}, err
	}
	if !domain.CanComment(inc.Participants(), actorID, role) {
		return repository.Incidence{}, apperr.Forbidden("not a participant of this incidence")
	}
	if inc.Status.IsTerminal() {
		return repository.Incidence{}, apperr.Conflict("incidence is closed")
	}
	return inc, nil
}

// storeMedia uploads each file and records its metadata only after the
// blob write succeeded. Results keep the input order.
func (s *Service) storeMedia(ctx context.Context, incidenceID uuid.UUID, owner evidence.Owner, uploaderID uuid.UUID, files []evidence.File) ([]repository.Media, []transport.FailedMedia) {
	if len(files) == 0 {
		return nil, []transport.FailedMedia{}
	}

	results := make([]*repository.Media, len(files))
	reasons := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelUploads)
	for i, f := range files {
		g.Go(func() error {
			ref, err := s.store.Put(gctx, owner, f)
			if err != nil {
				reasons[i] = err
				return nil
			}
			m, err := s.repo.CreateMedia(gctx, repository.MediaParams{
				IncidenceID:  incidenceID,
				OwnerKind:    owner.Kind,
				OwnerID:      owner.ID,
				Bucket:       ref.Bucket,
				FileKey:      ref.Key,
				FileName:     ref.Name,
				ContentType:  ref.ContentType,
				SizeBytes:    ref.Size,
				ThumbnailKey: ref.ThumbnailKey,
				CapturedAt:   ref.CapturedAt,
				UploadedBy:   uploaderID,
			})
			if err != nil {
				reasons[i] = err
				return nil
			}
			results[i] = &m
			return nil
		})
	}
	_ = g.Wait()

	stored := make([]repository.Media, 0, len(files))
	failed := make([]transport.FailedMedia, 0)
	for i := range files {
		if results[i] != nil {
			stored = append(stored, *results[i])
			continue
		}
		s.log.WithContext(ctx).Warn("media upload failed",
			"incidenceId", incidenceID,
			"fileName", files[i].Name,
			"error", reasons[i],
		)
		failed = append(failed, transport.FailedMedia{
			Index:    i,
			FileName: files[i].Name,
			Reason:   failureReason(reasons[i]),
		})
	}
	return stored, failed
}

// signMedia attaches download URLs. A signing failure leaves the URL empty
// rather than failing the read.
func (s *Service) signMedia(ctx context.Context, media []repository.Media) []transport.MediaResponse {
	out := make([]transport.MediaResponse, 0, len(media))
	for _, m := range media {
		resp := transport.MediaResponse{
			ID:          m.ID,
			OwnerKind:   m.OwnerKind,
			OwnerID:     m.OwnerID,
			FileName:    m.FileName,
			ContentType: m.ContentType,
			SizeBytes:   m.SizeBytes,
			CapturedAt:  m.CapturedAt,
			UploadedBy:  m.UploadedBy,
			CreatedAt:   m.CreatedAt,
		}
		ref := evidence.Reference{Bucket: m.Bucket, Key: m.FileKey, Name: m.FileName, ContentType: m.ContentType}
		if signed, err := s.store.Get(ctx, ref); err == nil {
			resp.DownloadURL = signed.URL
		} else {
			s.log.UpstreamFailure("evidence", "sign", err)
		}
		if m.ThumbnailKey != nil {
			thumb := evidence.Reference{Bucket: m.Bucket, Key: *m.ThumbnailKey, ContentType: "image/jpeg"}
			if signed, err := s.store.Get(ctx, thumb); err == nil {
				resp.ThumbnailURL = &signed.URL
			}
		}
		out = append(out, resp)
	}
	return out
}

func failureReason(err error) string {
	if err == nil {
		return "unknown error"
	}
	switch apperr.GetKind(err) {
	case apperr.KindValidation:
		return err.Error()
	case apperr.KindUpstream:
		return "storage unavailable"
	default:
		return "could not record media"
	}
}

func toCommentResponse(c repository.Comment, media []transport.MediaResponse) transport.CommentResponse {
	if media == nil {
		media = []transport.MediaResponse{}
	}
	return transport.CommentResponse{
		ID:          c.ID,
		IncidenceID: c.IncidenceID,
		AuthorID:    c.AuthorID,
		Body:        c.Body,
		Media:       media,
		CreatedAt:   c.CreatedAt,
	}
}
