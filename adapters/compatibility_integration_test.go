package adapters_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-pids/adapters/gocommand"
	"github.com/goliatone/go-pids/adapters/gojob"
	"github.com/goliatone/go-pids/adapters/gologger"
	pidcommand "github.com/goliatone/go-pids/command"
	"github.com/goliatone/go-pids/core"
	pidmigrations "github.com/goliatone/go-pids/migrations"
	"github.com/goliatone/go-pids/providers/devkit"
	"github.com/goliatone/go-pids/providers/ezid"
	pidquery "github.com/goliatone/go-pids/query"
	sqlstore "github.com/goliatone/go-pids/store/sql"
)

const compatConfigID = "article_ark"

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()
	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("pids", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	factory := newCompatFactory(t)
	seedCompatConfiguration(t, factory.IdentifierConfigStore())

	objects := core.NewMemoryObjectSource()
	for _, id := range []string{"001", "002", "003"} {
		obj := devkit.NewObjectFixture(id)
		obj.Set(devkit.FixtureField, "https://ezid.example.test/id/ark:/99999/fk4"+id)
		objects.Put(obj)
	}
	transport := devkit.NewFakeTransportAdapter("rest", devkit.Redirect("https://repo.example.test/node/001"))
	schema := core.NewMemoryConfigSource().AddField(devkit.FixtureEntityType, devkit.FixtureBundle, devkit.FixtureField)

	cfg := core.DefaultConfig()
	cfg.Reconcile.PageSize = 2
	svc, err := core.NewService(cfg,
		core.WithConfigSource(factory.IdentifierConfigStore()),
		core.WithFieldSchema(schema),
		core.WithTransport(transport),
		core.WithProtocolAdapters(ezid.New()),
		core.WithObjectSource(objects),
		core.WithReconcileCursorStore(factory.ReconcileCursorStore()),
		core.WithReconcileReportSink(factory.ReconcileReportStore()),
		core.WithLoggerProvider(provider),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterPIDHandlers(adapter, gocommand.HandlersForService(svc, factory.ReconcileReportStore()))
	if err != nil {
		t.Fatalf("register pid handlers: %v", err)
	}
	defer subs.Unsubscribe()

	resolved, err := gocommand.Query[pidquery.ResolveConfigMessage, core.ResolvedConfig](ctx, pidquery.ResolveConfigMessage{ConfigID: compatConfigID})
	if err != nil {
		t.Fatalf("resolve config through dispatcher: %v", err)
	}
	if resolved.Backend.Kind() != core.BackendKindEZID {
		t.Fatalf("expected ezid backend, got %q", resolved.Backend.Kind())
	}

	jobs := &memoryQueue{}
	runner, err := gojob.NewReconcileJobRunner(svc, jobs, gojob.WithLoggerProvider(provider))
	if err != nil {
		t.Fatalf("new reconcile job runner: %v", err)
	}
	if err := runner.Start(ctx, compatConfigID); err != nil {
		t.Fatalf("start reconcile run: %v", err)
	}
	for attempt := 0; jobs.Len() > 0; attempt++ {
		if attempt > 5 {
			t.Fatalf("reconcile run did not finish")
		}
		if err := runner.ProcessNext(ctx, jobs, 1); err != nil {
			t.Fatalf("process reconcile page: %v", err)
		}
	}
	if jobs.acked != 2 || jobs.nacked != 0 {
		t.Fatalf("expected two acked pages, got acked=%d nacked=%d", jobs.acked, jobs.nacked)
	}

	cursor, err := factory.ReconcileCursorStore().Load(ctx, compatConfigID)
	if err != nil {
		t.Fatalf("load cursor: %v", err)
	}
	if !cursor.Finished || cursor.Completed != 3 || cursor.LastProcessedID != "003" {
		t.Fatalf("unexpected cursor after job run: %#v", cursor)
	}

	report, err := gocommand.Query[pidquery.ListReconcileReportMessage, sqlstore.ReconcileReportPage](ctx, pidquery.ListReconcileReportMessage{
		Filter: sqlstore.ReconcileReportFilter{ConfigID: compatConfigID, Status: core.ReconcileStatusMismatch},
	})
	if err != nil {
		t.Fatalf("list report through dispatcher: %v", err)
	}
	if report.Total != 2 {
		t.Fatalf("expected two mismatches, got %#v", report)
	}

	if !logger.saw("reconcile page advanced") {
		t.Fatalf("expected runner to log through the resolved provider")
	}
}

func TestRuntimeCompatibility_DispatchAdvanceReconcileStoresPage(t *testing.T) {
	ctx := context.Background()
	factory := newCompatFactory(t)
	seedCompatConfiguration(t, factory.IdentifierConfigStore())

	svc, err := core.NewService(core.DefaultConfig(),
		core.WithConfigSource(factory.IdentifierConfigStore()),
		core.WithTransport(devkit.NewFakeTransportAdapter("rest")),
		core.WithProtocolAdapters(ezid.New()),
		core.WithObjectSource(core.NewMemoryObjectSource()),
		core.WithReconcileCursorStore(factory.ReconcileCursorStore()),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	subs, err := gocommand.RegisterPIDHandlers(adapter, gocommand.HandlersForService(svc, nil))
	if err != nil {
		t.Fatalf("register pid handlers: %v", err)
	}
	defer subs.Unsubscribe()

	page, err := gocommand.DispatchWithResult[pidcommand.AdvanceReconcileMessage, core.ReconcilePageResult](
		ctx,
		pidcommand.AdvanceReconcileMessage{ConfigID: compatConfigID},
	)
	if err != nil {
		t.Fatalf("dispatch advance reconcile: %v", err)
	}
	if !page.Finished || page.Progress != 1 {
		t.Fatalf("expected an empty run to finish at full progress, got %#v", page)
	}
}

type memoryQueue struct {
	mu       sync.Mutex
	pending  []*job.ExecutionMessage
	enqueued int
	acked    int
	nacked   int
}

func (q *memoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, msg)
	q.enqueued++
	return queue.EnqueueReceipt{
		DispatchID: fmt.Sprintf("mem-%d", q.enqueued),
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

func (q *memoryQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, fmt.Errorf("memory queue is empty")
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return &memoryDelivery{queue: q, msg: msg}, nil
}

func (q *memoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

type memoryDelivery struct {
	queue *memoryQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *memoryDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.acked++
	return nil
}

func (d *memoryDelivery) Nack(context.Context, queue.NackOptions) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.nacked++
	return nil
}

func newCompatFactory(t *testing.T) *sqlstore.RepositoryFactory {
	t.Helper()
	client, err := sqlstore.Open(sqlstore.ConnectionConfig{
		Driver: sqlstore.DriverSQLite,
		DSN:    fmt.Sprintf("file:pids-compat-%d?mode=memory&cache=shared", time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("open sqlite client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if err := pidmigrations.Apply(context.Background(), client, sqlstore.DriverSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	return factory
}

func seedCompatConfiguration(t *testing.T, store sqlstore.ConfigStore) {
	t.Helper()
	ctx := context.Background()
	backend := devkit.NewEZIDBackendFixture("")
	if _, err := store.SaveBackend(ctx, backend); err != nil {
		t.Fatalf("save backend: %v", err)
	}
	profile := devkit.NewDataProfileFixture(core.ProfileVariantERC)
	if _, err := store.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if _, err := store.SaveIdentifierConfig(ctx, core.IdentifierConfig{
		ID:          compatConfigID,
		EntityType:  devkit.FixtureEntityType,
		Bundle:      devkit.FixtureBundle,
		TargetField: devkit.FixtureField,
		BackendRef:  backend.ID,
		ProfileRef:  profile.ID,
	}); err != nil {
		t.Fatalf("save identifier config: %v", err)
	}
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *compatLogger) record(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *compatLogger) saw(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, candidate := range l.messages {
		if candidate == msg {
			return true
		}
	}
	return false
}

func (l *compatLogger) Trace(msg string, _ ...any)              { l.record(msg) }
func (l *compatLogger) Debug(msg string, _ ...any)              { l.record(msg) }
func (l *compatLogger) Info(msg string, _ ...any)               { l.record(msg) }
func (l *compatLogger) Warn(msg string, _ ...any)               { l.record(msg) }
func (l *compatLogger) Error(msg string, _ ...any)              { l.record(msg) }
func (l *compatLogger) Fatal(msg string, _ ...any)              { l.record(msg) }
func (l *compatLogger) WithContext(context.Context) glog.Logger { return l }
