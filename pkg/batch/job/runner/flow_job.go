package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	flow "riptide/pkg/batch/flow"
	core "riptide/pkg/batch/job/core"
	exception "riptide/pkg/batch/util/exception"
	logger "riptide/pkg/batch/util/logger"
)

// FlowJob はビルド済みのフローグラフを走査してジョブを実行する core.Job の実装です。
// 遷移先の解決はグラフの Resolve に委譲し、実行時 ExitStatus がどのパターンにも
// マッチしない場合はジョブの失敗として扱います（暗黙の成功扱いはしません）。
type FlowJob struct {
	id           string
	name         string
	graph        *flow.Graph
	jobListeners []core.JobExecutionListener
}

// FlowJob が core.Job インターフェースを満たすことを確認します。
var _ core.Job = (*FlowJob)(nil)

// NewFlowJob は新しい FlowJob のインスタンスを作成します。
func NewFlowJob(
	id string,
	name string,
	graph *flow.Graph,
	jobListeners []core.JobExecutionListener,
) *FlowJob {
	return &FlowJob{
		id:           id,
		name:         name,
		graph:        graph,
		jobListeners: jobListeners,
	}
}

// JobID はジョブのIDを返します。
func (j *FlowJob) JobID() string {
	return j.id
}

// JobName はジョブ名を返します。
func (j *FlowJob) JobName() string {
	return j.name
}

// Graph はジョブのフローグラフを返します。
func (j *FlowJob) Graph() *flow.Graph {
	return j.graph
}

// ValidateParameters はジョブパラメータのバリデーションを行います。
// 現時点では常に nil を返しますが、ジョブ固有のバリデーションロジックをここに追加できます。
func (j *FlowJob) ValidateParameters(params core.JobParameters) error {
	logger.Debugf("ジョブ '%s': JobParameters のバリデーションを実行するよ。Parameters: %+v", j.name, params.Params)
	return nil
}

// notifyBeforeJob は登録されている JobExecutionListener の BeforeJob メソッドを呼び出します。
func (j *FlowJob) notifyBeforeJob(ctx context.Context, jobExecution *core.JobExecution) {
	for _, l := range j.jobListeners {
		l.BeforeJob(ctx, jobExecution)
	}
}

// notifyAfterJob は登録されている JobExecutionListener の AfterJob メソッドを呼び出します。
func (j *FlowJob) notifyAfterJob(ctx context.Context, jobExecution *core.JobExecution) {
	for _, l := range j.jobListeners {
		l.AfterJob(ctx, jobExecution)
	}
}

// Run はフローグラフの開始状態から終端の擬似状態に到達するまでジョブを実行します。
func (j *FlowJob) Run(ctx context.Context, jobExecution *core.JobExecution, jobParameters core.JobParameters) error {
	logger.Infof("ジョブ '%s' (Execution ID: %s) を始めるよ。", j.name, jobExecution.ID)

	j.notifyBeforeJob(ctx, jobExecution)

	defer func() {
		jobExecution.EndTime = time.Now()
		j.notifyAfterJob(ctx, jobExecution)
		logger.Infof("ジョブ '%s' (Execution ID: %s) が終了したよ。最終ステータス: %s, 終了ステータス: %s",
			j.name, jobExecution.ID, jobExecution.Status, jobExecution.ExitStatus)
	}()

	// リスタートの場合、中断した状態から再開する
	resumeAt := ""
	if jobExecution.CurrentStateName != "" && jobExecution.Status == core.BatchStatusFailed {
		logger.Infof("ジョブ '%s' は状態 '%s' からリスタートするよ。", j.name, jobExecution.CurrentStateName)
		resumeAt = jobExecution.CurrentStateName
	}

	status, kind, err := j.walk(ctx, j.graph, jobExecution, jobParameters, resumeAt)
	if err != nil {
		jobExecution.AddFailureException(err)
		if errors.Is(err, context.Canceled) {
			logger.Warnf("Context がキャンセルされたため、ジョブ '%s' の実行を中断するよ: %v", j.name, err)
			jobExecution.MarkAsStopped()
		} else {
			logger.Errorf("ジョブ '%s' の実行中にエラーが発生したよ: %v", j.name, err)
			jobExecution.MarkAsFailed(err)
		}
		return err
	}

	switch kind {
	case flow.StateKindEnd:
		jobExecution.MarkAsCompleted()
		jobExecution.ExitStatus = status
		logger.Infof("ジョブ '%s' のフローが正常に完了したよ。ExitStatus: %s", j.name, status)
	case flow.StateKindFail:
		failErr := fmt.Errorf("フローが Fail 終端に到達しました")
		jobExecution.MarkAsFailed(failErr)
		logger.Errorf("ジョブ '%s' は Fail 終端に到達したため失敗として終了するよ。", j.name)
		return failErr
	case flow.StateKindStop:
		jobExecution.MarkAsStopped()
		logger.Infof("ジョブ '%s' は Stop 終端に到達したため停止するよ。", j.name)
	}
	return nil
}

// walk はグラフを開始状態（または resumeAt）から終端の擬似状態まで走査します。
// 到達した終端の ExitStatus と種類を返します。サブフローと Split の分岐も
// この関数で再帰的に走査されます。
func (j *FlowJob) walk(
	ctx context.Context,
	g *flow.Graph,
	jobExecution *core.JobExecution,
	jobParameters core.JobParameters,
	resumeAt string,
) (core.ExitStatus, flow.StateKind, error) {
	currentName := g.StartState().Name()
	if resumeAt != "" {
		currentName = resumeAt
	}

	for {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		default:
		}

		state, ok := g.State(currentName)
		if !ok {
			return "", "", exception.NewBatchErrorf(j.name, "フロー状態 '%s' が見つからないよ", currentName)
		}

		jobExecution.CurrentStateName = currentName
		logger.Debugf("ジョブ '%s': フロー状態 '%s' (%s) を実行するよ。", j.name, currentName, state.Kind())

		var elementExitStatus core.ExitStatus
		var elementErr error

		switch s := state.(type) {
		case *flow.EndState:
			return s.ExitStatus(), flow.StateKindEnd, nil
		case *flow.FailState:
			return core.ExitStatusFailed, flow.StateKindFail, nil
		case *flow.StopState:
			return core.ExitStatusStopped, flow.StateKindStop, nil

		case *flow.StepState:
			elementExitStatus, elementErr = j.executeStep(ctx, s, jobExecution)

		case *flow.DecisionState:
			decision := s.Decision()
			elementExitStatus, elementErr = decision.Decide(ctx, jobExecution, jobParameters)
			if elementErr != nil {
				logger.Errorf("ジョブ '%s': デシジョン '%s' の実行中にエラーが発生したよ: %v", j.name, s.Name(), elementErr)
			} else {
				logger.Infof("ジョブ '%s': デシジョン '%s' が完了したよ。結果: %s", j.name, s.Name(), elementExitStatus)
			}

		case *flow.FlowState:
			subStatus, _, subErr := j.walk(ctx, s.Graph(), jobExecution, jobParameters, "")
			elementExitStatus, elementErr = subStatus, subErr
			if subErr == nil {
				logger.Infof("ジョブ '%s': サブフロー '%s' が完了したよ。結果: %s", j.name, s.Name(), subStatus)
			}

		case *flow.SplitState:
			elementExitStatus, elementErr = j.executeSplit(ctx, s, jobExecution, jobParameters)

		default:
			return "", "", exception.NewBatchErrorf(j.name, "不明なフロー状態の型だよ: %T (名前: %s)", state, currentName)
		}

		if elementErr != nil {
			jobExecution.AddFailureException(elementErr)
			if errors.Is(elementErr, context.Canceled) {
				return "", "", elementErr
			}
			if elementExitStatus == "" || elementExitStatus == core.ExitStatusUnknown {
				elementExitStatus = core.ExitStatusFailed
			}
		}

		// 遷移テーブルで次の状態を解決する。マッチする遷移がない場合は
		// フローの失敗として伝播させる（暗黙の成功にはしない）。
		target, err := g.Resolve(currentName, elementExitStatus)
		if err != nil {
			if elementErr != nil {
				return "", "", errors.Join(elementErr, err)
			}
			return "", "", err
		}
		currentName = target
	}
}

// executeStep はステップ状態を実行します。リスタート時は失敗した既存の
// StepExecution を再利用します。
func (j *FlowJob) executeStep(ctx context.Context, s *flow.StepState, jobExecution *core.JobExecution) (core.ExitStatus, error) {
	step := s.Step()
	stepName := step.StepName()

	stepExecution := jobExecution.FindStepExecution(stepName, core.BatchStatusFailed)
	if stepExecution != nil {
		logger.Infof("ジョブ '%s': ステップ '%s' の既存の StepExecution (ID: %s) を再利用するよ。", j.name, stepName, stepExecution.ID)
	} else {
		stepExecution = core.NewStepExecution(uuid.New().String(), jobExecution, stepName)
		jobExecution.AddStepExecution(stepExecution)
	}

	err := step.Execute(ctx, jobExecution, stepExecution)
	if err != nil {
		logger.Errorf("ジョブ '%s': ステップ '%s' の実行中にエラーが発生したよ: %v", j.name, stepName, err)
	} else {
		logger.Infof("ジョブ '%s': ステップ '%s' が正常に完了したよ。ExitStatus: %s", j.name, stepName, stepExecution.ExitStatus)
	}
	return stepExecution.ExitStatus, err
}

// executeSplit は Split の全分岐を並列に実行し、集約ポリシーで Split 自身の
// ExitStatus を決定します。全分岐が終了ステータスを報告するまでブロックします
// (join セマンティクス)。CancelSiblings が有効な場合、最初の失敗で残りの分岐を
// キャンセルします。
func (j *FlowJob) executeSplit(
	ctx context.Context,
	s *flow.SplitState,
	jobExecution *core.JobExecution,
	jobParameters core.JobParameters,
) (core.ExitStatus, error) {
	branches := s.Branches()
	logger.Infof("ジョブ '%s': Split '%s' を実行するよ。分岐数: %d", j.name, s.Name(), len(branches))

	branchCtx := ctx
	var cancel context.CancelFunc
	if s.CancelSiblings() {
		branchCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	var wg sync.WaitGroup
	statuses := make(chan core.ExitStatus, len(branches))
	branchErrors := make(chan error, len(branches))

	for _, branch := range branches {
		wg.Add(1)
		go func(branch *flow.Graph) {
			defer wg.Done()
			logger.Infof("ジョブ '%s': Split '%s' の分岐 '%s' を開始するよ。", j.name, s.Name(), branch.Name())

			status, _, err := j.walk(branchCtx, branch, jobExecution, jobParameters, "")
			if err != nil {
				logger.Errorf("ジョブ '%s': Split '%s' の分岐 '%s' でエラーが発生したよ: %v", j.name, s.Name(), branch.Name(), err)
				branchErrors <- err
				statuses <- core.ExitStatusFailed
				if cancel != nil {
					cancel()
				}
				return
			}
			logger.Infof("ジョブ '%s': Split '%s' の分岐 '%s' が完了したよ。結果: %s", j.name, s.Name(), branch.Name(), status)
			// Fail 終端に到達した分岐もエラーと同じく失敗として扱う
			if status == core.ExitStatusFailed && cancel != nil {
				cancel()
			}
			statuses <- status
		}(branch)
	}
	wg.Wait()
	close(statuses)
	close(branchErrors)

	collected := make([]core.ExitStatus, 0, len(branches))
	for st := range statuses {
		collected = append(collected, st)
	}
	var joined error
	for err := range branchErrors {
		joined = errors.Join(joined, err)
	}

	aggregated := s.Aggregate(collected)
	logger.Infof("ジョブ '%s': Split '%s' の実行が完了したよ。集約結果: %s", j.name, s.Name(), aggregated)

	// 分岐のエラーは集約ステータスの遷移解決に委ねるため、ここでは返さない。
	// ただしキャンセルは走査全体の中断として伝播させる。
	if joined != nil && errors.Is(joined, context.Canceled) && ctx.Err() != nil {
		return aggregated, ctx.Err()
	}
	if joined != nil {
		jobExecution.AddFailureException(joined)
	}
	return aggregated, nil
}
