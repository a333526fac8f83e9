package harbor

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/go-utils/errs"
	"go.uber.org/multierr"
)

// =============================================================================
// ERROR CODES
// =============================================================================

const (
	// CodeInvalidBean indicates a bean definition is malformed
	CodeInvalidBean = "INVALID_BEAN"

	// CodeBeanAlreadyExists indicates a bean id is already registered
	CodeBeanAlreadyExists = "BEAN_ALREADY_EXISTS"

	// CodeRegistryClosed indicates registration after deployment
	CodeRegistryClosed = "REGISTRY_CLOSED"

	// CodeUnsatisfied indicates no bean satisfies a requirement
	CodeUnsatisfied = "UNSATISFIED_RESOLUTION"

	// CodeAmbiguous indicates more than one bean satisfies a requirement
	CodeAmbiguous = "AMBIGUOUS_RESOLUTION"

	// CodeContextNotActive indicates the requested scope has no active context
	CodeContextNotActive = "CONTEXT_NOT_ACTIVE"

	// CodeDuplicateActiveContext indicates more than one active context for a scope
	CodeDuplicateActiveContext = "DUPLICATE_ACTIVE_CONTEXT"

	// CodeUnknownScope indicates a bean uses a scope with no registered definition
	CodeUnknownScope = "UNKNOWN_SCOPE"

	// CodeDeployment indicates deployment validation failed
	CodeDeployment = "DEPLOYMENT_VALIDATION"

	// CodeDuplicateBeanClass indicates a bean class is deployed by separate units
	CodeDuplicateBeanClass = "DUPLICATE_BEAN_CLASS"

	// CodeCircularDependency indicates a dependency cycle between pseudo-scoped beans
	CodeCircularDependency = "CIRCULAR_DEPENDENCY"

	// CodeSpecialization indicates an invalid specialization
	CodeSpecialization = "INVALID_SPECIALIZATION"

	// CodeEnablement indicates a descriptor entry enables something it cannot
	CodeEnablement = "INVALID_ENABLEMENT"

	// CodeIllegalProduct indicates a producer returned nil for a non-dependent bean
	CodeIllegalProduct = "ILLEGAL_PRODUCT"

	// CodeUnknownMethod indicates an invocation of a method the bean does not expose
	CodeUnknownMethod = "UNKNOWN_METHOD"

	// CodeTypeMismatch indicates a type assertion failure on a resolved reference
	CodeTypeMismatch = "TYPE_MISMATCH"

	// CodeExtensionPhase indicates an extension handle was used outside its callback
	CodeExtensionPhase = "EXTENSION_PHASE"

	// CodeScopeEnded indicates use of a scope handle after it ended
	CodeScopeEnded = "SCOPE_ENDED"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

// ErrUnsatisfied matches every unsatisfied resolution.
var ErrUnsatisfied = errs.NewError(CodeUnsatisfied, "unsatisfied resolution", nil)

// ErrAmbiguous matches every ambiguous resolution.
var ErrAmbiguous = errs.NewError(CodeAmbiguous, "ambiguous resolution", nil)

// ErrContextNotActive matches every inactive-context failure.
var ErrContextNotActive = errs.NewError(CodeContextNotActive, "context not active", nil)

// ErrScopeEnded is returned by a scope handle used after End or Detach.
var ErrScopeEnded = errs.NewError(CodeScopeEnded, "scope already ended", nil)

// ErrDeployment matches every deployment validation failure.
var ErrDeployment = errs.NewError(CodeDeployment, "deployment validation failed", nil)

// ErrRegistryClosed is returned when beans are registered after deployment.
var ErrRegistryClosed = errs.NewError(CodeRegistryClosed, "bean registry is closed", nil)

// ErrDuplicateBeanClassSentinel matches duplicate bean class problems.
var ErrDuplicateBeanClassSentinel = errs.NewError(CodeDuplicateBeanClass, "duplicate bean class", nil)

// ErrCircularDependencySentinel matches circular dependency problems.
var ErrCircularDependencySentinel = errs.NewError(CodeCircularDependency, "circular dependency", nil)

// ErrTypeMismatchSentinel matches type assertion failures.
var ErrTypeMismatchSentinel = errs.NewError(CodeTypeMismatch, "type mismatch", nil)

// ErrIllegalProductSentinel matches nil products of non-dependent producers.
var ErrIllegalProductSentinel = errs.NewError(CodeIllegalProduct, "illegal product", nil)

// ErrInvalidBeanSentinel matches malformed bean definitions.
var ErrInvalidBeanSentinel = errs.NewError(CodeInvalidBean, "invalid bean", nil)

// =============================================================================
// ERROR CONSTRUCTORS
// =============================================================================

// ErrInvalidBean creates an error for a malformed bean definition.
func ErrInvalidBean(id, reason string) *errs.Error {
	return errs.NewError(
		CodeInvalidBean,
		fmt.Sprintf("bean '%s' is invalid: %s", id, reason),
		nil,
	).WithContext("bean", id).(*errs.Error)
}

// ErrBeanAlreadyExists creates an error for a duplicate bean id.
func ErrBeanAlreadyExists(id string) *errs.Error {
	return errs.NewError(
		CodeBeanAlreadyExists,
		fmt.Sprintf("bean '%s' already exists", id),
		nil,
	).WithContext("bean", id).(*errs.Error)
}

// ErrUnsatisfiedResolution creates an error for a requirement no bean satisfies.
func ErrUnsatisfiedResolution(required *Type, qualifiers []Annotation) *errs.Error {
	return errs.NewError(
		CodeUnsatisfied,
		fmt.Sprintf("unsatisfied dependency: no bean matches type %s with qualifiers %s", required, formatAnnotations(qualifiers)),
		nil,
	).WithContext("type", required.String()).
		WithContext("qualifiers", formatAnnotations(qualifiers)).(*errs.Error)
}

// ErrAmbiguousResolution creates an error for a requirement several beans satisfy.
func ErrAmbiguousResolution(required *Type, qualifiers []Annotation, candidates []*Bean) *errs.Error {
	ids := beanIDs(candidates)

	return errs.NewError(
		CodeAmbiguous,
		fmt.Sprintf("ambiguous dependency: type %s with qualifiers %s matches beans %v", required, formatAnnotations(qualifiers), ids),
		nil,
	).WithContext("type", required.String()).
		WithContext("candidates", ids).(*errs.Error)
}

// ErrNotActive creates an error for a scope without an active context.
func ErrNotActive(scope ScopeID) *errs.Error {
	return errs.NewError(
		CodeContextNotActive,
		fmt.Sprintf("no active context for scope '%s'", scope),
		nil,
	).WithContext("scope", string(scope)).(*errs.Error)
}

// ErrDuplicateActiveContext creates an error for a scope with several active contexts.
func ErrDuplicateActiveContext(scope ScopeID) *errs.Error {
	return errs.NewError(
		CodeDuplicateActiveContext,
		fmt.Sprintf("more than one active context for scope '%s'", scope),
		nil,
	).WithContext("scope", string(scope)).(*errs.Error)
}

// ErrUnknownScope creates an error for an unregistered scope.
func ErrUnknownScope(scope ScopeID) *errs.Error {
	return errs.NewError(
		CodeUnknownScope,
		fmt.Sprintf("scope '%s' is not registered", scope),
		nil,
	).WithContext("scope", string(scope)).(*errs.Error)
}

// ErrDuplicateBeanClass creates a deployment problem for a bean class owned by
// more than one deployment unit.
func ErrDuplicateBeanClass(class string, units []string) *errs.Error {
	sorted := append([]string(nil), units...)
	sort.Strings(sorted)

	return errs.NewError(
		CodeDuplicateBeanClass,
		fmt.Sprintf("bean class '%s' is deployed by units %s", class, strings.Join(sorted, ", ")),
		nil,
	).WithContext("class", class).
		WithContext("units", sorted).(*errs.Error)
}

// ErrCircularDependency creates a deployment problem for a pseudo-scoped cycle.
func ErrCircularDependency(cycle []string) *errs.Error {
	return errs.NewError(
		CodeCircularDependency,
		fmt.Sprintf("circular dependency detected: %v", cycle),
		nil,
	).WithContext("cycle", cycle).(*errs.Error)
}

// ErrSpecialization creates a deployment problem for an invalid specialization.
func ErrSpecialization(id, reason string) *errs.Error {
	return errs.NewError(
		CodeSpecialization,
		fmt.Sprintf("bean '%s' has invalid specialization: %s", id, reason),
		nil,
	).WithContext("bean", id).(*errs.Error)
}

// ErrEnablement creates a deployment problem for a descriptor entry.
func ErrEnablement(unit, kind, entry string) *errs.Error {
	return errs.NewError(
		CodeEnablement,
		fmt.Sprintf("descriptor of unit '%s' enables '%s' which is not a registered %s", unit, entry, kind),
		nil,
	).WithContext("unit", unit).
		WithContext("entry", entry).(*errs.Error)
}

// ErrDuplicateEnablement creates a deployment problem for an entry listed
// more than once in the same descriptor list.
func ErrDuplicateEnablement(unit, kind, entry string) *errs.Error {
	return errs.NewError(
		CodeEnablement,
		fmt.Sprintf("descriptor of unit '%s' lists %s '%s' more than once", unit, kind, entry),
		nil,
	).WithContext("unit", unit).
		WithContext("entry", entry).(*errs.Error)
}

// ErrInjection wraps a resolution failure with the injection point it occurred at.
func ErrInjection(ip *InjectionPoint, cause error) *errs.Error {
	return errs.NewError(
		codeOf(cause),
		fmt.Sprintf("injection point %s", ip),
		cause,
	).WithContext("injection_point", ip.String()).(*errs.Error)
}

// ErrIllegalProduct creates an error for a nil product of a non-dependent producer.
func ErrIllegalProduct(id string) *errs.Error {
	return errs.NewError(
		CodeIllegalProduct,
		fmt.Sprintf("producer bean '%s' returned nil but is not dependent scoped", id),
		nil,
	).WithContext("bean", id).(*errs.Error)
}

// ErrUnknownMethod creates an error for an invocation of an undeclared method.
func ErrUnknownMethod(id, method string) *errs.Error {
	return errs.NewError(
		CodeUnknownMethod,
		fmt.Sprintf("bean '%s' has no business method '%s'", id, method),
		nil,
	).WithContext("bean", id).
		WithContext("method", method).(*errs.Error)
}

// ErrTypeMismatch creates an error for a reference of an unexpected Go type.
func ErrTypeMismatch(required *Type, actual any) *errs.Error {
	return errs.NewError(
		CodeTypeMismatch,
		fmt.Sprintf("reference for %s has unexpected type %T", required, actual),
		nil,
	).WithContext("type", required.String()).
		WithContext("actual_type", fmt.Sprintf("%T", actual)).(*errs.Error)
}

// ErrExtensionPhase creates an error for an extension handle used after its callback.
func ErrExtensionPhase(operation string) *errs.Error {
	return errs.NewError(
		CodeExtensionPhase,
		fmt.Sprintf("%s is only allowed during its extension callback", operation),
		nil,
	).WithContext("operation", operation).(*errs.Error)
}

// NewDeploymentError aggregates deployment problems into a single error.
func NewDeploymentError(problems []error) *errs.Error {
	return errs.NewError(
		CodeDeployment,
		fmt.Sprintf("deployment validation failed with %d problem(s)", len(problems)),
		multierr.Combine(problems...),
	).WithContext("problems", len(problems)).(*errs.Error)
}

// codeOf returns the code of the outermost coded error in the chain, or
// CodeInvalidBean otherwise.
func codeOf(err error) string {
	var coded *errs.Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeInvalidBean
}

func beanIDs(beans []*Bean) []string {
	ids := make([]string, len(beans))
	for i, b := range beans {
		ids[i] = b.ID()
	}
	sort.Strings(ids)

	return ids
}
