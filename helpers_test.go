package harbor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/go-utils/errs"
	"go.uber.org/multierr"
)

func TestRegisterHelpers(t *testing.T) {
	factory := func(context.Context) (*mailer, error) { return &mailer{}, nil }

	tests := []struct {
		name     string
		register func(c *Container) error
		scope    ScopeID
	}{
		{
			name:     "singleton",
			register: func(c *Container) error { return RegisterSingleton(c, "mailer", factory) },
			scope:    ScopeSingleton,
		},
		{
			name:     "application",
			register: func(c *Container) error { return RegisterApplicationScoped(c, "mailer", factory) },
			scope:    ScopeApplication,
		},
		{
			name:     "request",
			register: func(c *Container) error { return RegisterRequestScoped(c, "mailer", factory) },
			scope:    ScopeRequest,
		},
		{
			name:     "dependent",
			register: func(c *Container) error { return RegisterDependent(c, "mailer", factory) },
			scope:    ScopeDependent,
		},
		{
			name:     "value",
			register: func(c *Container) error { return RegisterValue(c, "mailer", &mailer{}) },
			scope:    ScopeSingleton,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContainer(t)
			require.NoError(t, tt.register(c))

			b, ok := c.Bean("mailer")
			require.True(t, ok)
			assert.Equal(t, tt.scope, b.Scope())
			assert.True(t, containsType(b.Types(), TypeOf[*mailer]()))
		})
	}
}

func TestProvideValue(t *testing.T) {
	value := &mailer{host: "prebuilt"}
	c := newTestContainer(t)
	c.MustRegister(ProvideValue("mailer", value))
	deploy(t, c)

	got, err := Get[*mailer](context.Background(), c)
	require.NoError(t, err)
	assert.Same(t, value, got)
}

func TestProvideAs(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(greeterBean("greeter", ApplicationScoped()))
	deploy(t, c)

	ctx := context.Background()
	g, err := Get[greeter](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Greet())

	impl, err := Get[*englishGreeter](ctx, c)
	require.NoError(t, err)
	assert.Same(t, g, impl)
}

func TestMustGet_Panics(t *testing.T) {
	c := newTestContainer(t)
	deploy(t, c)

	assert.Panics(t, func() {
		MustGet[*mailer](context.Background(), c)
	})
}

func TestGetNamed(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		plainMailer("smtp", WithName("smtp")),
		plainMailer("ses", WithName("ses")),
	)
	deploy(t, c)

	ctx := context.Background()
	m, err := GetNamed[*mailer](ctx, c, "ses")
	require.NoError(t, err)
	assert.Equal(t, "ses", m.host)

	_, err = GetNamed[*mailer](ctx, c, "sendgrid")
	assert.ErrorIs(t, err, ErrUnsatisfied)
}

func TestKeys(t *testing.T) {
	primary := NamedKey[*mailer]("primary")
	audited := NewKey[*mailer](NewAnnotation("Audited"))
	plain := NewKey[*mailer]()

	assert.Equal(t, "{@Named(value=primary)} "+TypeOf[*mailer]().String(), primary.String())
	assert.Equal(t, TypeOf[*mailer]().String(), plain.String())
	assert.True(t, primary.Type().Equal(TypeOf[*mailer]()))
	assert.Equal(t, []Annotation{Named("primary")}, primary.Qualifiers())
	assert.True(t, primary.Point().Type.Equal(TypeOf[*mailer]()))

	c := newTestContainer(t)
	c.MustRegister(primary.Bean("mailer.primary", func(context.Context) (*mailer, error) {
		return &mailer{host: "primary"}, nil
	}, ApplicationScoped()))
	require.NoError(t, RegisterKey(c, "mailer.audited", audited, func(context.Context) (*mailer, error) {
		return &mailer{host: "audited"}, nil
	}))
	deploy(t, c)

	b, _ := c.Bean("mailer.primary")
	assert.Equal(t, "primary", b.Name())
	assert.Equal(t, ScopeApplication, b.Scope())

	ctx := context.Background()
	m, err := ResolveKey(ctx, c, primary)
	require.NoError(t, err)
	assert.Equal(t, "primary", m.host)
	assert.Equal(t, "audited", MustKey(ctx, c, audited).host)

	assert.True(t, HasKey(c, primary))
	assert.False(t, HasKey(c, plain))
	assert.Panics(t, func() { MustKey(ctx, c, plain) })
}

func TestRegisterAll(t *testing.T) {
	c := newTestContainer(t)

	err := RegisterAll(c,
		Service("mailer", newMailer, ApplicationScoped()),
		Definition(greeterBean("greeter")),
		Service("broken", "not a constructor"),
		Definition(greeterBean("greeter")),
	)
	require.Error(t, err)

	problems := multierr.Errors(err)
	require.Len(t, problems, 2)
	assert.ErrorIs(t, problems[0], ErrInvalidBeanSentinel)
	assert.ErrorIs(t, problems[1], errs.NewError(CodeBeanAlreadyExists, "", nil))

	_, ok := c.Bean("mailer")
	assert.True(t, ok)
	_, ok = c.Bean("greeter")
	assert.True(t, ok)
	_, ok = c.Bean("broken")
	assert.False(t, ok)
}

func TestModule(t *testing.T) {
	mail := Module{
		Name: "mail",
		Unit: "mail",
		Registrations: []Registration{
			Service("mail.mailer", newMailer, ApplicationScoped()),
			Service("mail.service", newMailService),
		},
	}
	greeting := Module{
		Name:          "greeting",
		Registrations: []Registration{Definition(greeterBean("greeter"))},
	}

	c := newTestContainer(t)
	require.NoError(t, RegisterModules(c, mail, greeting))

	for _, id := range []string{"mail.mailer", "mail.service"} {
		b, ok := c.Bean(id)
		require.True(t, ok, id)
		assert.Equal(t, "mail", b.Unit())
	}
	g, _ := c.Bean("greeter")
	assert.Empty(t, g.Unit())

	deploy(t, c)
	assert.Equal(t, "constructed", MustGet[*mailService](context.Background(), c).mailer.host)
}

func TestModule_Failure(t *testing.T) {
	broken := Module{
		Name:          "broken",
		Registrations: []Registration{Service("bad", 42)},
	}

	c := newTestContainer(t)
	err := RegisterModules(c, broken, Module{Name: "empty"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidBeanSentinel)

	var herr *errs.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "broken", herr.GetContext()["module"])
	assert.Contains(t, herr.Error(), "module 'broken' registration failed")
}

func TestQueryBeans(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		plainMailer("a.mailer", ApplicationScoped(), InUnit("a")),
		plainMailer("b.mailer", ApplicationScoped(), InUnit("b"), WithQualifiers(urgent)),
		plainMailer("b.singleton", Singleton(), InUnit("b"), WithQualifiers(urgent)),
		greeterBean("disabled", Alternative()),
		NewBean("produced", WithTypes(TypeOf[*auditLog]()), ApplicationScoped(), ProducesStatic(
			func(context.Context, any, []any) (any, error) { return &auditLog{}, nil },
		)),
	)
	deploy(t, c)

	ids := func(infos []BeanInfo) []string {
		out := make([]string, len(infos))
		for i, info := range infos {
			out[i] = info.ID
		}

		return out
	}

	disabled := false
	tests := []struct {
		name  string
		query BeanQuery
		want  []string
	}{
		{name: "scope", query: BeanQuery{Scope: ScopeApplication}, want: []string{"a.mailer", "b.mailer", "produced"}},
		{name: "unit", query: BeanQuery{Unit: "b"}, want: []string{"b.mailer", "b.singleton"}},
		{name: "qualifier", query: BeanQuery{Qualifier: &urgent}, want: []string{"b.mailer", "b.singleton"}},
		{name: "type", query: BeanQuery{Type: TypeOf[*mailer]()}, want: []string{"a.mailer", "b.mailer", "b.singleton"}},
		{name: "kind", query: BeanQuery{Kind: "producer"}, want: []string{"produced"}},
		{name: "disabled", query: BeanQuery{Enabled: &disabled}, want: []string{"disabled"}},
		{name: "combined", query: BeanQuery{Scope: ScopeSingleton, Unit: "b"}, want: []string{"b.singleton"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryIDs(c, tt.query))
			assert.Equal(t, tt.want, ids(QueryBeans(c, tt.query)))
		})
	}

	assert.Equal(t, []string{"a.mailer", "b.mailer", "produced"}, ids(FindByScope(c, ScopeApplication)))
	assert.Equal(t, []string{"a.mailer"}, ids(FindByUnit(c, "a")))
}

func TestFindInstantiated(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		plainMailer("mailer", ApplicationScoped()),
		Provide("audit", func(context.Context) (*auditLog, error) { return &auditLog{}, nil }, Singleton()),
	)
	deploy(t, c)

	assert.Empty(t, FindInstantiated(c))

	MustGet[*mailer](context.Background(), c)

	found := FindInstantiated(c)
	require.Len(t, found, 1)
	assert.Equal(t, "mailer", found[0].ID)
	assert.True(t, found[0].Instantiated)

	info, err := c.Inspect("audit")
	require.NoError(t, err)
	assert.False(t, info.Instantiated)
	assert.Equal(t, ScopeSingleton, info.Scope)
	assert.Equal(t, "managed", info.Kind)
}

func TestInspect_Unknown(t *testing.T) {
	c := newTestContainer(t)

	info, err := c.Inspect("missing")
	assert.ErrorIs(t, err, ErrUnsatisfied)
	assert.Equal(t, "missing", info.ID)
}

func TestLazy_CachesDependentInstance(t *testing.T) {
	var created atomic.Int32
	c := newTestContainer(t)
	c.MustRegister(Provide("mailer", func(context.Context) (*mailer, error) {
		created.Add(1)

		return &mailer{}, nil
	}))
	deploy(t, c)

	ctx := context.Background()
	lazy := NewLazy[*mailer](c)
	assert.False(t, lazy.IsResolved())

	first, err := lazy.Get(ctx)
	require.NoError(t, err)
	second := lazy.MustGet(ctx)

	assert.Same(t, first, second)
	assert.True(t, lazy.IsResolved())
	assert.Equal(t, int32(1), created.Load())
	assert.NoError(t, lazy.Release(ctx))
}

func TestLazy_RetriesAfterFailure(t *testing.T) {
	boom := errors.New("not ready")
	var calls atomic.Int32
	c := newTestContainer(t)
	c.MustRegister(Provide("mailer", func(context.Context) (*mailer, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}

		return &mailer{host: "ready"}, nil
	}))
	deploy(t, c)

	ctx := context.Background()
	lazy := NewLazy[*mailer](c)

	_, err := lazy.Get(ctx)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, lazy.Err(), boom)
	assert.False(t, lazy.IsResolved())

	m, err := lazy.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ready", m.host)
	assert.NoError(t, lazy.Err())
}

func TestLazy_NormalScopeIsNotCached(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(plainMailer("mailer", RequestScoped()))
	deploy(t, c)

	lazy := NewLazy[*mailer](c)

	_, err := lazy.Get(context.Background())
	assert.ErrorIs(t, err, ErrContextNotActive)

	var first, second *mailer
	require.NoError(t, c.RunInRequest(context.Background(), func(ctx context.Context) error {
		first = lazy.MustGet(ctx)

		return nil
	}))
	require.NoError(t, c.RunInRequest(context.Background(), func(ctx context.Context) error {
		second = lazy.MustGet(ctx)

		return nil
	}))

	assert.NotSame(t, first, second)
	assert.False(t, lazy.IsResolved())
}

func TestLazy_MustGetPanics(t *testing.T) {
	c := newTestContainer(t)
	deploy(t, c)

	assert.Panics(t, func() { NewLazy[*mailer](c).MustGet(context.Background()) })
}

func TestProvider(t *testing.T) {
	var destroyed atomic.Int32
	c := newTestContainer(t)
	c.MustRegister(plainMailer("mailer", WithPreDestroy(func(context.Context, any) error {
		destroyed.Add(1)

		return nil
	})))
	deploy(t, c)

	ctx := context.Background()
	provider := NewProvider[*mailer](c)

	first, err := provider.Provide(ctx)
	require.NoError(t, err)
	second := provider.MustProvide(ctx)
	assert.NotSame(t, first, second)

	require.NoError(t, provider.Release(ctx))
	assert.Equal(t, int32(2), destroyed.Load())

	assert.Panics(t, func() { NewProvider[*auditLog](c).MustProvide(ctx) })
}

func TestAll(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		greeterBean("english"),
		ProvideAs[greeter]("formal", func(context.Context) (*formalGreeter, error) {
			return &formalGreeter{}, nil
		}, WithQualifiers(NewAnnotation("Formal"))),
	)
	deploy(t, c)

	ctx := context.Background()

	defaults, err := All[greeter](ctx, c)
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, "hello", defaults[0].Greet())

	everything, err := All[greeter](ctx, c, Any)
	require.NoError(t, err)
	require.Len(t, everything, 2)
	assert.Equal(t, "hello", everything[0].Greet())
	assert.Equal(t, "good day", everything[1].Greet())

	none, err := All[*auditLog](ctx, c)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGet_DependentDestroyedAtShutdown(t *testing.T) {
	var destroyed atomic.Int32
	c := newTestContainer(t)
	c.MustRegister(
		NewBean("mailer",
			WithTypes(TypeOf[*mailer]()),
			WithConstructor(func(context.Context, []any) (any, error) {
				return &mailer{host: "dependent"}, nil
			}),
			WithPreDestroy(func(context.Context, any) error {
				destroyed.Add(1)

				return nil
			}),
		),
		greeterBean("english"),
	)
	deploy(t, c)

	ctx := context.Background()
	MustGet[*mailer](ctx, c)
	_, err := All[*mailer](ctx, c)
	require.NoError(t, err)
	MustGet[greeter](ctx, c)

	assert.Equal(t, int32(0), destroyed.Load())
	// only dependents with observable destruction are held
	assert.Len(t, c.lookups.Dependents(), 2)

	require.NoError(t, c.Shutdown(ctx))
	assert.Equal(t, int32(2), destroyed.Load())
	assert.Empty(t, c.lookups.Dependents())
}
