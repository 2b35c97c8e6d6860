package scheduler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/paiban/rota/pkg/model"
)

// BatchItem 批量求解中单个请求的结果
type BatchItem struct {
	Index  int     `json:"index"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}

// SolveBatch 并行求解多个独立请求
//
// 单个请求失败不影响其他请求，错误记录在对应的 BatchItem 中；
// 返回的切片与 reqs 一一对应。ctx 取消后尚未开始的请求直接记录 ctx 错误。
func (s *Scheduler) SolveBatch(ctx context.Context, reqs []*model.Request) []BatchItem {
	items := make([]BatchItem, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchWorkers)

	for i, req := range reqs {
		i, req := i, req
		items[i].Index = i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return nil
			}
			items[i].Result, items[i].Err = s.Generate(gctx, req)
			return nil
		})
	}

	// 每个任务都返回 nil，Wait 只用于等待全部完成
	_ = g.Wait()
	return items
}
