package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/content-alchemy/internal/domain"
	"github.com/UkralStul/content-alchemy/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	IdeaByID *dataloader.Loader
}

// NewLoaders создает лоадеры одного запроса.
func NewLoaders(store storage.Storage) *Loaders {
	// Батч-функция: один запрос к хранилищу на все ключи
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		ideasByID, err := store.GetIdeasByIDs(ctx, ids)
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Результат в том же порядке, что и ключи. Отсутствующая идея - nil
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			results[i] = &dataloader.Result{Data: ideasByID[id]}
		}
		return results
	}

	return &Loaders{
		IdeaByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond)),
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), key, NewLoaders(store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// For извлекает лоадеры из контекста. nil, если Middleware не подключен.
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(key).(*Loaders)
	return l
}

// IdeasFor загружает идеи постов одним батчем. Посты без идеи пропускаются.
func (l *Loaders) IdeasFor(ctx context.Context, posts []*domain.Post) (map[string]*domain.Idea, error) {
	thunks := make(map[string]dataloader.Thunk)
	for _, p := range posts {
		if p.IsDirectEntry() {
			continue
		}
		if _, ok := thunks[*p.IdeaID]; !ok {
			thunks[*p.IdeaID] = l.IdeaByID.Load(ctx, dataloader.StringKey(*p.IdeaID))
		}
	}

	out := make(map[string]*domain.Idea, len(thunks))
	for id, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			return nil, err
		}
		if idea, ok := data.(*domain.Idea); ok && idea != nil {
			out[id] = idea
		}
	}
	return out, nil
}
