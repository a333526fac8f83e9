package harbor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xraph/go-utils/errs"
	"go.uber.org/zap/zaptest"
)

// Test fixtures shared by the package tests.

type greeter interface {
	Greet() string
}

type englishGreeter struct{ id int }

func (g *englishGreeter) Greet() string { return "hello" }

type formalGreeter struct{}

func (g *formalGreeter) Greet() string { return "good day" }

type mailer struct {
	host string
}

type mailService struct {
	mailer *mailer
}

// recorder collects ordered lifecycle and invocation traces.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

func newTestContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()

	return New(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func deploy(t *testing.T, c *Container) {
	t.Helper()
	require.NoError(t, c.Deploy(context.Background()))
}

func greeterBean(id string, opts ...BeanOption) *Bean {
	return ProvideAs[greeter](id, func(context.Context) (*englishGreeter, error) {
		return &englishGreeter{}, nil
	}, opts...)
}

func TestNew_BuiltinBeans(t *testing.T) {
	c := newTestContainer(t)

	for _, id := range []string{InjectionPointBeanID, ContainerBeanID, InstanceBeanID, EventBeanID, activationInterceptorID} {
		_, ok := c.Bean(id)
		assert.True(t, ok, id)
	}
	assert.False(t, c.IsDeployed())
}

func TestContainer_Register(t *testing.T) {
	c := newTestContainer(t)

	require.NoError(t, c.Register(Provide("mailer", func(context.Context) (*mailer, error) {
		return &mailer{}, nil
	})))

	b, ok := c.Bean("mailer")
	require.True(t, ok)
	assert.Equal(t, ScopeDependent, b.Scope())
	assert.Equal(t, BeanManaged, b.Kind())
	assert.True(t, b.IsEnabled())
	assert.Contains(t, b.Qualifiers(), Default)
	assert.Contains(t, b.Qualifiers(), Any)
	assert.True(t, containsType(b.Types(), ObjectType))
}

func TestContainer_Register_Duplicate(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(greeterBean("greeter"))

	err := c.Register(greeterBean("greeter"))
	require.Error(t, err)

	var herr *errs.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, CodeBeanAlreadyExists, herr.Code)
}

func TestContainer_Register_InvalidBean(t *testing.T) {
	c := newTestContainer(t)

	err := c.Register(NewBean(""))
	assert.ErrorIs(t, err, ErrInvalidBeanSentinel)

	err = c.Register(NewBean("no-constructor", WithTypes(TypeOf[*mailer]())))
	assert.ErrorIs(t, err, ErrInvalidBeanSentinel)

	err = c.Register(NewBean("scoped-interceptor",
		WithConstructor(func(context.Context, []any) (any, error) { return &struct{}{}, nil }),
		AsInterceptor(NewAnnotation("Audited")),
		ApplicationScoped(),
	))
	assert.ErrorIs(t, err, ErrInvalidBeanSentinel)
}

func TestContainer_RegistryClosedAfterDeploy(t *testing.T) {
	c := newTestContainer(t)
	deploy(t, c)

	assert.True(t, c.IsDeployed())
	assert.ErrorIs(t, c.Register(greeterBean("late")), ErrRegistryClosed)
	assert.ErrorIs(t, c.Deploy(context.Background()), ErrRegistryClosed)
}

func TestContainer_ApplicationScopedSharesInstance(t *testing.T) {
	c := newTestContainer(t)
	created := 0
	c.MustRegister(Provide("mailer", func(context.Context) (*mailer, error) {
		created++

		return &mailer{host: "smtp"}, nil
	}, ApplicationScoped()))
	deploy(t, c)

	ctx := context.Background()
	first, err := Get[*mailer](ctx, c)
	require.NoError(t, err)
	second, err := Get[*mailer](ctx, c)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, created)
}

func TestContainer_DependentCreatesFreshInstances(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(Provide("mailer", func(context.Context) (*mailer, error) {
		return &mailer{}, nil
	}))
	deploy(t, c)

	ctx := context.Background()
	first := MustGet[*mailer](ctx, c)
	second := MustGet[*mailer](ctx, c)

	assert.NotSame(t, first, second)
}

func TestContainer_NormalScopeReturnsClientProxy(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(Provide("mailer", func(context.Context) (*mailer, error) {
		return &mailer{host: "smtp"}, nil
	}, ApplicationScoped()))
	deploy(t, c)

	ctx := context.Background()
	ref, err := c.Instance(TypeOf[*mailer]()).Get(ctx)
	require.NoError(t, err)

	proxy, ok := ref.(*ClientProxy)
	require.True(t, ok)
	assert.Equal(t, "mailer", proxy.Bean().ID())

	again, err := c.Instance(TypeOf[*mailer]()).Get(ctx)
	require.NoError(t, err)
	assert.Same(t, proxy, again)

	m, err := Resolve[*mailer](ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "smtp", m.host)
}

func TestContainer_ConstructorInjection(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		Provide("mailer", func(context.Context) (*mailer, error) {
			return &mailer{host: "smtp"}, nil
		}, Singleton()),
		NewBean("mail-service",
			WithTypes(TypeOf[*mailService]()),
			WithConstructor(func(_ context.Context, args []any) (any, error) {
				return &mailService{mailer: args[0].(*mailer)}, nil
			}, InjectOf[*mailer]()),
		),
	)
	deploy(t, c)

	svc := MustGet[*mailService](context.Background(), c)
	assert.Equal(t, "smtp", svc.mailer.host)
}

func TestContainer_AmbiguousResolution(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(greeterBean("a"), greeterBean("b"))
	deploy(t, c)

	_, err := Get[greeter](context.Background(), c)
	require.ErrorIs(t, err, ErrAmbiguous)

	var herr *errs.Error
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, []string{"a", "b"}, herr.GetContext()["candidates"])
	assert.True(t, c.Instance(TypeOf[greeter]()).IsAmbiguous())
}

func TestContainer_UnsatisfiedResolution(t *testing.T) {
	c := newTestContainer(t)
	deploy(t, c)

	_, err := Get[*mailer](context.Background(), c)
	assert.ErrorIs(t, err, ErrUnsatisfied)
	assert.True(t, c.Instance(TypeOf[*mailer]()).IsUnsatisfied())
}

func TestContainer_AlternativePriority(t *testing.T) {
	tests := []struct {
		name     string
		beans    []*Bean
		expected string
		err      error
	}{
		{
			name: "alternative wins over default",
			beans: []*Bean{
				greeterBean("plain"),
				greeterBean("alt", Alternative(), WithPriority(PriorityApplication)),
			},
			expected: "alt",
		},
		{
			name: "highest priority alternative wins",
			beans: []*Bean{
				greeterBean("low", Alternative(), WithPriority(10)),
				greeterBean("high", Alternative(), WithPriority(20)),
			},
			expected: "high",
		},
		{
			name: "equal priorities stay ambiguous",
			beans: []*Bean{
				greeterBean("first", Alternative(), WithPriority(10)),
				greeterBean("second", Alternative(), WithPriority(10)),
			},
			err: ErrAmbiguous,
		},
		{
			name: "alternative without priority is disabled",
			beans: []*Bean{
				greeterBean("plain"),
				greeterBean("alt", Alternative()),
			},
			expected: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContainer(t)
			c.MustRegister(tt.beans...)
			deploy(t, c)

			b, err := c.ResolveBean(TypeOf[greeter]())
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, b.ID())
		})
	}
}

func TestContainer_Specialization(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		greeterBean("english", WithName("greeter")),
		NewBean("formal",
			WithTypes(TypeOf[*formalGreeter](), TypeOf[*englishGreeter](), TypeOf[greeter]()),
			WithConstructor(func(context.Context, []any) (any, error) {
				return &formalGreeter{}, nil
			}),
			Specializes("english"),
		),
	)
	deploy(t, c)

	english, _ := c.Bean("english")
	assert.False(t, english.IsEnabled())

	formal, _ := c.Bean("formal")
	assert.Equal(t, "greeter", formal.Name())
	assert.Contains(t, formal.Qualifiers(), Named("greeter"))

	g, err := GetNamed[greeter](context.Background(), c, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "good day", g.Greet())

	byName, err := c.BeanByName("greeter")
	require.NoError(t, err)
	assert.Equal(t, "formal", byName.ID())
}

func TestContainer_Specialization_Invalid(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		greeterBean("english"),
		Provide("mailer", func(context.Context) (*mailer, error) {
			return &mailer{}, nil
		}, Specializes("english")),
		greeterBean("orphan", Specializes("missing")),
	)

	err := c.Deploy(context.Background())
	require.ErrorIs(t, err, ErrDeployment)
	assert.ErrorIs(t, err, errs.NewError(CodeSpecialization, "", nil))
	assert.Contains(t, err.Error(), "deployment validation failed with 2 problem(s)")
}

func TestContainer_Specialization_Cycle(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		greeterBean("a", Specializes("b")),
		greeterBean("b", Specializes("a")),
	)

	err := c.Deploy(context.Background())
	require.ErrorIs(t, err, ErrDeployment)
	assert.ErrorIs(t, err, errs.NewError(CodeSpecialization, "", nil))
	assert.Contains(t, err.Error(), "specialization cycle through 'b'")
}

func TestContainer_DefaultAndNamedQualifiers(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		Provide("foo", func(context.Context) (*mailer, error) {
			return &mailer{host: "foo"}, nil
		}),
		Provide("bar", func(context.Context) (*mailer, error) {
			return &mailer{host: "bar"}, nil
		}, WithName("bar")),
	)
	deploy(t, c)

	ctx := context.Background()

	def, err := Get[*mailer](ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "foo", def.host)

	named, err := Get[*mailer](ctx, c, Named("bar"))
	require.NoError(t, err)
	assert.Equal(t, "bar", named.host)

	bar, _ := c.Bean("bar")
	assert.NotContains(t, bar.Qualifiers(), Default)

	all := c.Beans(TypeOf[*mailer](), Any)
	assert.Len(t, all, 2)
}

func TestContainer_NonBindingMembers(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(greeterBean("eu", WithQualifiers(NewAnnotation("Region",
		Bind("value", "eu"),
		NonBinding("comment", "primary"),
	))))
	deploy(t, c)

	_, err := Get[greeter](context.Background(), c, NewAnnotation("Region",
		Bind("value", "eu"),
		NonBinding("comment", "anything"),
	))
	require.NoError(t, err)

	_, err = Get[greeter](context.Background(), c, NewAnnotation("Region", Bind("value", "us")))
	assert.ErrorIs(t, err, ErrUnsatisfied)
}

func TestContainer_Deploy_UnsatisfiedInjectionPoint(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(NewBean("mail-service",
		WithTypes(TypeOf[*mailService]()),
		WithConstructor(func(_ context.Context, args []any) (any, error) {
			return &mailService{}, nil
		}, InjectOf[*mailer]().As("mailer")),
	))

	err := c.Deploy(context.Background())
	require.ErrorIs(t, err, ErrDeployment)
	assert.ErrorIs(t, err, ErrUnsatisfied)
	assert.Contains(t, err.Error(), "mail-service.mailer")
	assert.False(t, c.IsDeployed())
}

func TestContainer_Deploy_LenientValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StrictValidation = false

	c := newTestContainer(t, WithConfig(cfg))
	c.MustRegister(NewBean("mail-service",
		WithTypes(TypeOf[*mailService]()),
		WithConstructor(func(_ context.Context, args []any) (any, error) {
			return &mailService{}, nil
		}, InjectOf[*mailer]()),
	))
	deploy(t, c)

	_, err := Get[*mailService](context.Background(), c)
	assert.ErrorIs(t, err, ErrUnsatisfied)
}

func TestContainer_Deploy_CircularDependency(t *testing.T) {
	c := newTestContainer(t)

	type a struct{}
	type b struct{}
	c.MustRegister(
		NewBean("a", WithTypes(TypeOf[*a]()), WithConstructor(func(context.Context, []any) (any, error) {
			return &a{}, nil
		}, InjectOf[*b]())),
		NewBean("b", WithTypes(TypeOf[*b]()), WithConstructor(func(context.Context, []any) (any, error) {
			return &b{}, nil
		}, InjectOf[*a]())),
	)

	err := c.Deploy(context.Background())
	require.ErrorIs(t, err, ErrDeployment)
	assert.ErrorIs(t, err, ErrCircularDependencySentinel)
}

func TestContainer_CycleThroughNormalScopeIsAllowed(t *testing.T) {
	type node struct {
		peer any
	}
	type leaf struct {
		parent any
	}

	c := newTestContainer(t)
	c.MustRegister(
		NewBean("node", WithTypes(TypeOf[*node]()), ApplicationScoped(),
			WithConstructor(func(_ context.Context, args []any) (any, error) {
				return &node{peer: args[0]}, nil
			}, InjectOf[*leaf]())),
		NewBean("leaf", WithTypes(TypeOf[*leaf]()),
			WithConstructor(func(_ context.Context, args []any) (any, error) {
				return &leaf{parent: args[0]}, nil
			}, InjectOf[*node]())),
	)
	deploy(t, c)

	n, err := Get[*node](context.Background(), c)
	require.NoError(t, err)

	l, ok := n.peer.(*leaf)
	require.True(t, ok)
	assert.IsType(t, &ClientProxy{}, l.parent)
}

func TestContainer_Deploy_AmbiguousName(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		greeterBean("a", WithName("dup")),
		Provide("b", func(context.Context) (*mailer, error) { return &mailer{}, nil }, WithName("dup")),
	)

	err := c.Deploy(context.Background())
	require.ErrorIs(t, err, ErrDeployment)
	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestContainer_Deploy_UnknownScope(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(greeterBean("tenant", WithScope("tenant")))

	err := c.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrInvalidBeanSentinel)
}

func TestContainer_Shutdown(t *testing.T) {
	rec := &recorder{}
	c := newTestContainer(t)
	c.MustRegister(
		Provide("first", func(context.Context) (*mailer, error) {
			return &mailer{host: "first"}, nil
		}, ApplicationScoped(), WithPreDestroy(func(context.Context, any) error {
			rec.add("first")

			return nil
		})),
		Provide("second", func(context.Context) (*mailService, error) {
			return &mailService{}, nil
		}, Singleton(), WithPreDestroy(func(context.Context, any) error {
			rec.add("second")

			return nil
		})),
	)
	deploy(t, c)

	ctx := context.Background()
	MustGet[*mailer](ctx, c)
	MustGet[*mailService](ctx, c)

	require.NoError(t, c.Shutdown(ctx))
	assert.Equal(t, []string{"first", "second"}, rec.all())

	require.NoError(t, c.Shutdown(ctx))
	assert.Len(t, rec.all(), 2)
}

func TestContainer_Shutdown_DestroyFailureIsLogged(t *testing.T) {
	boom := errors.New("boom")
	c := newTestContainer(t)
	c.MustRegister(Provide("mailer", func(context.Context) (*mailer, error) {
		return &mailer{}, nil
	}, ApplicationScoped(), WithPreDestroy(func(context.Context, any) error {
		return boom
	})))
	deploy(t, c)

	MustGet[*mailer](context.Background(), c)

	// destruction failures are logged by the context and do not fail shutdown
	assert.NoError(t, c.Shutdown(context.Background()))
}

func TestContainer_CreationErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	c := newTestContainer(t)
	c.MustRegister(Provide("mailer", func(context.Context) (*mailer, error) {
		return nil, boom
	}, ApplicationScoped()))
	deploy(t, c)

	_, err := Get[*mailer](context.Background(), c)
	assert.ErrorIs(t, err, boom)
}

func TestContainer_IllegalProduct(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(NewBean("nil-mailer",
		WithTypes(TypeOf[*mailer]()),
		ApplicationScoped(),
		ProducesStatic(func(context.Context, any, []any) (any, error) {
			return nil, nil
		}),
	))
	deploy(t, c)

	_, err := Get[*mailer](context.Background(), c)
	assert.ErrorIs(t, err, ErrIllegalProductSentinel)
}
