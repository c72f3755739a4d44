package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Clark-Hu/movieclub/internal/domain"
	"github.com/Clark-Hu/movieclub/internal/repository"
	"github.com/Clark-Hu/movieclub/internal/testdb"
)

type dbEnv struct {
	ctx       context.Context
	repo      *repository.Repository
	svc       *Service
	publisher *recordingPublisher
}

func newDBEnv(t testing.TB) *dbEnv {
	t.Helper()
	db := testdb.New(t)
	repo := repository.NewWithPool(db.Pool)
	publisher := &recordingPublisher{}
	svc := NewService(db.Store, repo, Options{
		MaxAttempts: 10,
		LockTimeout: 5 * time.Second,
		Publisher:   publisher,
	})
	return &dbEnv{ctx: context.Background(), repo: repo, svc: svc, publisher: publisher}
}

func (e *dbEnv) movie(t testing.TB, title string) domain.Movie {
	t.Helper()
	movie, err := e.repo.Movies.Create(e.ctx, repository.MovieCreateParams{Title: title, Genre: "Drama"})
	if err != nil {
		t.Fatalf("create movie: %v", err)
	}
	return movie
}

func (e *dbEnv) user(t testing.TB, name string) domain.User {
	t.Helper()
	user, err := e.repo.Users.Create(e.ctx, repository.UserCreateParams{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSubmitRunningAverage(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Example")

	steps := []struct {
		score     float64
		wantMean  float64
		wantCount int64
	}{
		{score: 8, wantMean: 8, wantCount: 1},
		{score: 4, wantMean: 6, wantCount: 2},
		{score: 10, wantMean: 22.0 / 3.0, wantCount: 3},
	}

	var weighted float64
	for i, step := range steps {
		weighted = domain.NextMean(int64(i), weighted, step.score)
		if !approxEqual(weighted, step.wantMean) {
			t.Fatalf("weighted mean after %v = %v, want %v", step.score, weighted, step.wantMean)
		}
		user := env.user(t, fmt.Sprintf("reviewer%d", i))
		sub, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: step.score})
		if err != nil {
			t.Fatalf("submit %v: %v", step.score, err)
		}
		if sub.Review.Score != step.score {
			t.Fatalf("review score = %v, want %v", sub.Review.Score, step.score)
		}
		if !approxEqual(sub.Movie.Score, step.wantMean) || sub.Movie.ReviewCount != step.wantCount {
			t.Fatalf("after %v: aggregate = (%v, %d), want (%v, %d)",
				step.score, sub.Movie.Score, sub.Movie.ReviewCount, step.wantMean, step.wantCount)
		}
	}

	stored, err := env.repo.Movies.GetByID(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if !approxEqual(stored.Score, 22.0/3.0) || stored.ReviewCount != 3 {
		t.Fatalf("stored aggregate = (%v, %d)", stored.Score, stored.ReviewCount)
	}

	if len(env.publisher.events) != 3 {
		t.Fatalf("published %d events, want 3", len(env.publisher.events))
	}
	last := env.publisher.events[2]
	if last.ReviewCount != 3 || last.Score != 10 {
		t.Fatalf("last event = %+v", last)
	}
}

func TestSubmitConcurrentSameMovie(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Contended")

	const workers = 20
	users := make([]domain.User, workers)
	for i := range users {
		users[i] = env.user(t, fmt.Sprintf("concurrent%d", i))
	}

	var (
		wg  sync.WaitGroup
		sum float64
	)
	for i := 0; i < workers; i++ {
		score := float64(i%21) / 2
		sum += score
		wg.Add(1)
		go func(userID string, score float64) {
			defer wg.Done()
			if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: userID, Score: score}); err != nil {
				t.Errorf("submit for %s: %v", userID, err)
			}
		}(users[i].ID, score)
	}
	wg.Wait()

	stored, err := env.repo.Movies.GetByID(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if stored.ReviewCount != workers {
		t.Fatalf("review count = %d, want %d", stored.ReviewCount, workers)
	}
	if want := sum / workers; !approxEqual(stored.Score, want) {
		t.Fatalf("score = %v, want %v", stored.Score, want)
	}
}

func TestSubmitSecondReviewRejected(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Once")
	user := env.user(t, "repeat")

	if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: 6}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: 2})
	if !errors.Is(err, domain.ErrConstraintViolation) {
		t.Fatalf("second submit err = %v, want ErrConstraintViolation", err)
	}

	stored, err := env.repo.Movies.GetByID(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if stored.Score != 6 || stored.ReviewCount != 1 {
		t.Fatalf("aggregate changed by rejected submit: (%v, %d)", stored.Score, stored.ReviewCount)
	}
}

func TestSubmitAtomicOnFailureAfterInsert(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Atomic")
	user := env.user(t, "atomic")

	boom := errors.New("injected failure")
	env.svc.afterInsert = func(context.Context) error { return boom }

	if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: 9}); !errors.Is(err, boom) {
		t.Fatalf("submit err = %v, want injected failure", err)
	}
	if _, err := env.repo.Reviews.Find(env.ctx, movie.ID, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("review survived rollback: %v", err)
	}
	stored, err := env.repo.Movies.GetByID(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if stored.ReviewCount != 0 || stored.Score != 0 {
		t.Fatalf("aggregate changed by rolled back submit: (%v, %d)", stored.Score, stored.ReviewCount)
	}
	if len(env.publisher.events) != 0 {
		t.Fatalf("event published for rolled back submit")
	}

	env.svc.afterInsert = nil
	if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: 9}); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

func TestSubmitCancelledContextLeavesNoTrace(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Cancelled")
	user := env.user(t, "cancel")

	ctx, cancel := context.WithCancel(env.ctx)
	env.svc.afterInsert = func(context.Context) error {
		cancel()
		return nil
	}

	if _, err := env.svc.Submit(ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: 3}); err == nil {
		t.Fatalf("submit with cancelled context succeeded")
	}
	if _, err := env.repo.Reviews.Find(env.ctx, movie.ID, user.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("review survived cancellation: %v", err)
	}
	stored, err := env.repo.Movies.GetByID(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if stored.ReviewCount != 0 {
		t.Fatalf("aggregate changed by cancelled submit: %d", stored.ReviewCount)
	}
}

func TestSubmitUnknownMovieOrUser(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Known")
	user := env.user(t, "known")

	if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: "missing", UserID: user.ID, Score: 5}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown movie err = %v, want ErrNotFound", err)
	}
	if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: "missing", Score: 5}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown user err = %v, want ErrNotFound", err)
	}
}

func TestUpdateTextKeepsAggregate(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Editable")
	user := env.user(t, "editor")

	original := "fine"
	sub, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: 7.5, Text: &original})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	edited := "  actually great  "
	updated, err := env.svc.UpdateText(env.ctx, movie.ID, user.ID, &edited)
	if err != nil {
		t.Fatalf("update text: %v", err)
	}
	if updated.Text == nil || *updated.Text != "actually great" {
		t.Fatalf("text = %v, want trimmed edit", updated.Text)
	}
	if updated.Score != sub.Review.Score {
		t.Fatalf("score changed: %v", updated.Score)
	}

	stored, err := env.repo.Movies.GetByID(env.ctx, movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if stored.Score != 7.5 || stored.ReviewCount != 1 {
		t.Fatalf("aggregate changed by text edit: (%v, %d)", stored.Score, stored.ReviewCount)
	}

	if _, err := env.svc.UpdateText(env.ctx, movie.ID, "stranger", &edited); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("update missing review err = %v, want ErrNotFound", err)
	}

	found, err := env.svc.Find(env.ctx, movie.ID, user.ID)
	if err != nil || found.ID != sub.Review.ID {
		t.Fatalf("find = %+v, %v", found, err)
	}
}

func TestSubmitNotHeldByStalledPublisher(t *testing.T) {
	db := testdb.New(t)
	repo := repository.NewWithPool(db.Pool)
	publisher := &stalledPublisher{}
	svc := NewService(db.Store, repo, Options{
		PublishTimeout: 50 * time.Millisecond,
		Publisher:      publisher,
	})
	env := &dbEnv{ctx: context.Background(), repo: repo, svc: svc}
	movie := env.movie(t, "Stalled")
	user := env.user(t, "patient")

	start := time.Now()
	sub, err := svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: 6})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("submit took %v with a stalled publisher", elapsed)
	}
	if sub.Movie.ReviewCount != 1 || publisher.calls != 1 {
		t.Fatalf("aggregate count = %d, publish calls = %d", sub.Movie.ReviewCount, publisher.calls)
	}
}

func TestListPagesAreDisjointAndOrdered(t *testing.T) {
	env := newDBEnv(t)
	movie := env.movie(t, "Paged")

	scores := []float64{5, 5, 5, 7, 7}
	for i, score := range scores {
		user := env.user(t, fmt.Sprintf("pager%d", i))
		if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: user.ID, Score: score}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	filter := domain.ReviewFilter{SortField: domain.SortByScore, SortDirection: domain.SortDesc, PageSize: 2}
	seen := make(map[string]bool)
	var all []domain.Review
	for page := 0; page < 3; page++ {
		filter.PageIndex = page
		items, err := env.svc.List(env.ctx, domain.MovieScope(movie.ID), filter)
		if err != nil {
			t.Fatalf("list page %d: %v", page, err)
		}
		for _, item := range items {
			if seen[item.ID] {
				t.Fatalf("review %s appeared on two pages", item.ID)
			}
			seen[item.ID] = true
		}
		all = append(all, items...)

		again, err := env.svc.List(env.ctx, domain.MovieScope(movie.ID), filter)
		if err != nil {
			t.Fatalf("relist page %d: %v", page, err)
		}
		if len(again) != len(items) {
			t.Fatalf("page %d not repeatable", page)
		}
		for i := range again {
			if again[i].ID != items[i].ID {
				t.Fatalf("page %d order changed between calls", page)
			}
		}
	}
	if len(all) != len(scores) {
		t.Fatalf("paged %d reviews, want %d", len(all), len(scores))
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.Score < cur.Score || (prev.Score == cur.Score && prev.ID < cur.ID) {
			t.Fatalf("reviews %d/%d out of order across pages", i-1, i)
		}
	}

	empty, err := env.svc.List(env.ctx, domain.MovieScope(movie.ID), domain.ReviewFilter{PageIndex: 50})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("past end returned %d reviews", len(empty))
	}

	far, err := env.svc.List(env.ctx, domain.MovieScope(movie.ID), domain.ReviewFilter{PageIndex: 922337203685477580, PageSize: 20})
	if err != nil {
		t.Fatalf("list overflowing page: %v", err)
	}
	if len(far) != 0 {
		t.Fatalf("overflowing page returned %d reviews", len(far))
	}

	byUser, err := env.svc.List(env.ctx, domain.UserScope(all[0].UserID), domain.ReviewFilter{})
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byUser) != 1 || byUser[0].ID != all[0].ID {
		t.Fatalf("list by user = %+v", byUser)
	}
}

func BenchmarkSubmit(b *testing.B) {
	env := newDBEnv(b)
	movie := env.movie(b, "Bench")
	users := make([]domain.User, b.N)
	for i := range users {
		users[i] = env.user(b, fmt.Sprintf("bench%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.svc.Submit(env.ctx, SubmitParams{MovieID: movie.ID, UserID: users[i].ID, Score: 5}); err != nil {
			b.Fatalf("submit: %v", err)
		}
	}
}
