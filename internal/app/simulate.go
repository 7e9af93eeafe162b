package app

import (
	"context"
	"errors"
	"fmt"

	"flash-trader/internal/alerting"
	"flash-trader/internal/service"
)

// SimulateCycle 预演一次周期结算：计算奖励与抽奖结果，但不写入任何状态。
// With announce set the preview is also pushed through the configured notifier.
func (a *App) SimulateCycle(ctx context.Context, volume *uint64, announce bool) error {
	var notifier alerting.Notifier
	if announce {
		if notifier = a.newNotifier(); notifier == nil {
			return errors.New("未配置任何公告通道")
		}
	}

	return a.withService(ctx, func(svc *service.Service) error {
		v, err := a.resolveVolume(ctx, volume)
		if err != nil {
			return err
		}
		outcome, err := svc.PreviewCycle(ctx, v)
		if err != nil {
			return err
		}
		a.printCycle(outcome, true)

		if notifier != nil {
			note := alerting.NewNotification(outcome.Result, outcome.Volume, outcome.Pool)
			note.AdditionalMsg = "(simulation, nothing was paid)\n"
			if err := notifier.Notify(ctx, note); err != nil {
				return fmt.Errorf("announce preview: %w", err)
			}
		}
		return nil
	})
}
