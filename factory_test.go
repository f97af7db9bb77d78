package beanctx

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type FactorySuite struct {
	suite.Suite
	factory *BeanFactory
}

func (suite *FactorySuite) SetupTest() {
	suite.factory = NewBeanFactory()
	require.NoError(suite.T(), suite.factory.RegisterBeanDefinition("userDao", userDaoDefinition()))
	require.NoError(suite.T(), suite.factory.RegisterBeanDefinition("userService", userServiceDefinition()))
}

func TestFactorySuite(t *testing.T) {
	suite.Run(t, new(FactorySuite))
}

func (suite *FactorySuite) TestGetBean_WiresReferencesAndLiterals() {
	v, err := suite.factory.GetBean("userService")
	require.NoError(suite.T(), err)

	svc, ok := v.(*UserService)
	require.True(suite.T(), ok, "expected *UserService, got %T", v)
	assert.Equal(suite.T(), "bigboss, Tencent, Shenzhen", svc.QueryUserInfo())
}

func (suite *FactorySuite) TestGetBean_ReferenceMatchesDirectLookup() {
	svc, err := GetBeanAs[*UserService](suite.factory, "userService")
	require.NoError(suite.T(), err)
	dao, err := GetBeanAs[*UserDao](suite.factory, "userDao")
	require.NoError(suite.T(), err)

	require.Same(suite.T(), dao, svc.UserDao)
}

func (suite *FactorySuite) TestGetBean_SingletonIsCached() {
	v1, err := suite.factory.GetBean("userService")
	require.NoError(suite.T(), err)
	v2, err := suite.factory.GetBean("userService")
	require.NoError(suite.T(), err)

	require.Same(suite.T(), v1, v2)
	assert.True(suite.T(), suite.factory.ContainsSingleton("userService"))
}

func (suite *FactorySuite) TestGetBean_PrototypeIsFresh() {
	require.NoError(suite.T(), suite.factory.RegisterBeanDefinition("car",
		NewBeanDefinition(TypeOf[Car]()).WithScope(ScopePrototype).WithProperty("brand", "porsche")))

	car1, err := GetBeanAs[*Car](suite.factory, "car")
	require.NoError(suite.T(), err)
	car2, err := GetBeanAs[*Car](suite.factory, "car")
	require.NoError(suite.T(), err)

	require.NotSame(suite.T(), car1, car2)
	assert.Equal(suite.T(), "porsche", car2.Brand)
	assert.False(suite.T(), suite.factory.ContainsSingleton("car"))

	isProto, err := suite.factory.IsPrototype("car")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), isProto)
}

func (suite *FactorySuite) TestGetBean_NotFound() {
	_, err := suite.factory.GetBean("NoSuchBean")
	require.Error(suite.T(), err)
	require.ErrorIs(suite.T(), err, ErrDefinitionNotFound)

	var bce *BeanCreationError
	require.ErrorAs(suite.T(), err, &bce)
	assert.Equal(suite.T(), "NoSuchBean", bce.BeanName)
}

func (suite *FactorySuite) TestGetBean_EmptyName() {
	v, err := suite.factory.GetBean("")
	assert.Nil(suite.T(), v)
	require.Equal(suite.T(), ErrBeanNameIsEmpty, err)
}

func (suite *FactorySuite) TestGetBean_MissingReferenceNamesBothBeans() {
	require.NoError(suite.T(), suite.factory.RegisterBeanDefinition("userService",
		userServiceDefinition().WithProperty("userDao", Ref("missingDao"))))

	_, err := suite.factory.GetBean("userService")
	require.ErrorIs(suite.T(), err, ErrDefinitionNotFound)
	assert.Contains(suite.T(), err.Error(), "userService")
	assert.Contains(suite.T(), err.Error(), "missingDao")
	assert.False(suite.T(), suite.factory.ContainsSingleton("userService"))
}

func (suite *FactorySuite) TestMustGetBean_ReturnsInstance() {
	v := suite.factory.MustGetBean("userDao")
	_, ok := v.(*UserDao)
	require.True(suite.T(), ok, "expected *UserDao, got %T", v)
}

func (suite *FactorySuite) TestMustGetBean_PanicsWhenNotFound() {
	require.Panics(suite.T(), func() {
		_ = suite.factory.MustGetBean("NoSuchBean")
	})
}

func (suite *FactorySuite) TestRegisterBeanDefinition_OverwritesPriorDefinition() {
	require.NoError(suite.T(), suite.factory.RegisterBeanDefinition("userService",
		NewBeanDefinition(TypeOf[UserService]()).WithProperty("company", "Alibaba")))

	svc, err := GetBeanAs[*UserService](suite.factory, "userService")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Alibaba", svc.Company)
	assert.Empty(suite.T(), svc.UID, "old property values must not survive")
	assert.Nil(suite.T(), svc.UserDao)
	assert.Equal(suite.T(), []string{"userDao", "userService"}, suite.factory.BeanDefinitionNames())
}

func (suite *FactorySuite) TestRegisterBeanDefinition_RejectsInvalidInput() {
	require.Equal(suite.T(), ErrBeanNameIsEmpty, suite.factory.RegisterBeanDefinition("", userDaoDefinition()))
	require.Equal(suite.T(), ErrDefinitionIsNil, suite.factory.RegisterBeanDefinition("x", nil))
	require.Error(suite.T(), suite.factory.RegisterBeanDefinition("x", userDaoDefinition().WithScope("session")))
}

func (suite *FactorySuite) TestIsSingleton() {
	ok, err := suite.factory.IsSingleton("userDao")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), ok)

	_, err = suite.factory.IsSingleton("nope")
	require.ErrorIs(suite.T(), err, ErrDefinitionNotFound)
}

func (suite *FactorySuite) TestPreInstantiateSingletons_SkipsPrototypes() {
	require.NoError(suite.T(), suite.factory.RegisterBeanDefinition("car",
		NewBeanDefinition(TypeOf[Car]()).WithScope(ScopePrototype)))

	require.NoError(suite.T(), suite.factory.PreInstantiateSingletons())
	assert.ElementsMatch(suite.T(), []string{"userDao", "userService"}, suite.factory.SingletonNames())
}

func (suite *FactorySuite) TestRegisterSingleton_ServedWithoutDefinition() {
	require.NoError(suite.T(), suite.factory.RegisterSingleton("workingDir", "/tmp/app"))

	got, err := GetBeanAs[string](suite.factory, "workingDir")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "/tmp/app", got)
	assert.True(suite.T(), suite.factory.ContainsBean("workingDir"))

	require.ErrorIs(suite.T(), suite.factory.RegisterSingleton("workingDir", "/other"), ErrDuplicateDefinition)
}

func (suite *FactorySuite) TestRegisterSingleton_NormalizesStructValues() {
	require.NoError(suite.T(), suite.factory.RegisterSingleton("car", Car{Brand: "hongqi"}))

	car, err := GetBeanAs[*Car](suite.factory, "car")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "hongqi", car.Brand)
}

// --- GetBeanAs generic helper tests ---

func TestGetBeanAs_WrongRequestedType(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("car", NewBeanDefinition(TypeOf[Car]())))

	_, err := GetBeanAs[*Person](f, "car")
	require.ErrorIs(t, err, ErrTypeMismatch)
	require.Contains(t, err.Error(), "*beanctx.Car")
}

func TestGetBeanAs_Interface(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("car", NewBeanDefinition(TypeOf[Car]())))

	_, err := GetBeanAs[Initializer](f, "car")
	require.ErrorIs(t, err, ErrTypeMismatch)
}

func TestGetBeanAs_NotFound(t *testing.T) {
	_, err := GetBeanAs[*Car](NewBeanFactory(), "NoSuchBean")
	require.ErrorIs(t, err, ErrDefinitionNotFound)
}

// --- Constructor argument tests ---

func TestGetBeanWithArgs_SelectsConstructorByArity(t *testing.T) {
	f := NewBeanFactory()
	bt := TypeOf[Car](NewCar, NewCarWithSeats)
	require.NoError(t, f.RegisterBeanDefinition("car", NewBeanDefinition(bt).WithScope(ScopePrototype)))

	v, err := f.GetBeanWithArgs("car", "hongqi")
	require.NoError(t, err)
	assert.Equal(t, &Car{Brand: "hongqi"}, v)

	v, err = f.GetBeanWithArgs("car", "hongqi", 7)
	require.NoError(t, err)
	assert.Equal(t, &Car{Brand: "hongqi", Seats: 7}, v)

	v, err = f.GetBean("car")
	require.NoError(t, err)
	assert.Equal(t, &Car{}, v, "no arguments falls back to the zero value")
}

func TestGetBeanWithArgs_NoMatchingArity(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("car", NewBeanDefinition(TypeOf[Car](NewCar))))

	_, err := f.GetBeanWithArgs("car", "a", 1, true)
	require.ErrorIs(t, err, ErrInstantiation)
	assert.False(t, f.ContainsSingleton("car"))
}

func TestGetBeanWithArgs_IgnoredForCachedSingleton(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("car", NewBeanDefinition(TypeOf[Car](NewCar))))

	first, err := f.GetBeanWithArgs("car", "hongqi")
	require.NoError(t, err)
	second, err := f.GetBeanWithArgs("car", "porsche")
	require.NoError(t, err)
	require.Same(t, first, second)
	assert.Equal(t, "hongqi", second.(*Car).Brand)
}

// --- Cycle detection tests ---

// Two-node cycle: A -> B -> A
type cycleA struct{ B *cycleB }
type cycleB struct{ A *cycleA }

func TestCycleDetection_TwoNode(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("a", NewBeanDefinition(TypeOf[cycleA]()).WithProperty("B", Ref("b"))))
	require.NoError(t, f.RegisterBeanDefinition("b", NewBeanDefinition(TypeOf[cycleB]()).WithProperty("A", Ref("a"))))

	_, err := f.GetBean("a")
	require.ErrorIs(t, err, ErrCircularReference)
	require.Contains(t, err.Error(), "a -> b -> a")
	assert.Empty(t, f.SingletonNames(), "nothing half-built may be cached")
}

// Three-node cycle: A3 -> B3 -> C3 -> A3
type cycleA3 struct{ B *cycleB3 }
type cycleB3 struct{ C *cycleC3 }
type cycleC3 struct{ A *cycleA3 }

func TestCycleDetection_ThreeNode(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("a3", NewBeanDefinition(TypeOf[cycleA3]()).WithProperty("B", Ref("b3"))))
	require.NoError(t, f.RegisterBeanDefinition("b3", NewBeanDefinition(TypeOf[cycleB3]()).WithProperty("C", Ref("c3"))))
	require.NoError(t, f.RegisterBeanDefinition("c3", NewBeanDefinition(TypeOf[cycleC3]()).WithProperty("A", Ref("a3"))))

	_, err := f.GetBean("b3")
	require.ErrorIs(t, err, ErrCircularReference)
	require.Contains(t, err.Error(), "b3 -> c3 -> a3 -> b3")
}

// Self-cycle: A -> A
type selfCycleA struct{ A *selfCycleA }

func TestCycleDetection_SelfCycle(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("aself", NewBeanDefinition(TypeOf[selfCycleA]()).WithProperty("A", Ref("aself"))))

	_, err := f.GetBean("aself")
	require.ErrorIs(t, err, ErrCircularReference)
	require.Contains(t, err.Error(), "aself -> aself")
}

// --- Initialization order tests ---

var initOrder []string

type orderB struct{}

func (b *orderB) Initialize() error {
	initOrder = append(initOrder, "B")
	return nil
}

type orderA struct {
	B *orderB
}

func (a *orderA) Initialize() error {
	// B must have been initialized already
	if len(initOrder) == 0 || initOrder[len(initOrder)-1] != "B" {
		return errors.New("order violation: B must initialize before A")
	}
	initOrder = append(initOrder, "A")
	return nil
}

type orderC struct {
	A *orderA
}

func (c3 *orderC) Initialize() error {
	// A must have been initialized already, and hence B before A
	if len(initOrder) < 2 || initOrder[len(initOrder)-1] != "A" {
		return errors.New("order violation: A must initialize before C")
	}
	initOrder = append(initOrder, "C")
	return nil
}

func TestInitializer_OrderByReferences_Depth3(t *testing.T) {
	initOrder = nil
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("OrderC", NewBeanDefinition(TypeOf[orderC]()).WithProperty("A", Ref("OrderA"))))
	require.NoError(t, f.RegisterBeanDefinition("OrderA", NewBeanDefinition(TypeOf[orderA]()).WithProperty("B", Ref("OrderB"))))
	require.NoError(t, f.RegisterBeanDefinition("OrderB", NewBeanDefinition(TypeOf[orderB]())))

	require.NoError(t, f.PreInstantiateSingletons())
	// Expected order: B -> A -> C
	require.Equal(t, []string{"B", "A", "C"}, initOrder)
}

// --- Type queries ---

type testIface interface{ A() int }

type concreteDep struct{}

func (c *concreteDep) A() int { return 42 }

type receiver struct {
	Dep testIface
}

func TestInterfaceInjection(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("receiver", NewBeanDefinition(TypeOf[receiver]()).WithProperty("dep", Ref("dep"))))
	require.NoError(t, f.RegisterBeanDefinition("dep", NewBeanDefinition(TypeOf[concreteDep]())))

	r, err := GetBeanAs[*receiver](f, "receiver")
	require.NoError(t, err)
	require.NotNil(t, r.Dep)
	assert.Equal(t, 42, r.Dep.A())
}

func TestInterfaceMismatchFailsBinding(t *testing.T) {
	type other struct{}

	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("receiver", NewBeanDefinition(TypeOf[receiver]()).WithProperty("dep", Ref("dep"))))
	require.NoError(t, f.RegisterBeanDefinition("dep", NewBeanDefinition(TypeOf[other]())))

	_, err := f.GetBean("receiver")
	require.ErrorIs(t, err, ErrPropertyBinding)
}

func TestBeanNamesForTypeAndBeansOfType(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("dep2", NewBeanDefinition(TypeOf[concreteDep]())))
	require.NoError(t, f.RegisterBeanDefinition("car", NewBeanDefinition(TypeOf[Car]())))
	require.NoError(t, f.RegisterBeanDefinition("dep1", NewBeanDefinition(TypeOf[concreteDep]())))

	names := f.BeanNamesForType(reflect.TypeOf((*testIface)(nil)).Elem())
	require.Equal(t, []string{"dep2", "dep1"}, names)

	beans, err := BeansOfType[testIface](f)
	require.NoError(t, err)
	require.Len(t, beans, 2)
	assert.Equal(t, 42, beans["dep1"].A())
}

func TestAllNames_IsRestartable(t *testing.T) {
	f := NewBeanFactory()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, f.RegisterBeanDefinition(name, NewBeanDefinition(TypeOf[Car]())))
	}

	collect := func() []string {
		var out []string
		for name := range f.AllNames() {
			out = append(out, name)
		}
		return out
	}
	require.Equal(t, []string{"c", "a", "b"}, collect())
	require.Equal(t, collect(), collect())

	for name := range f.AllNames() {
		if name == "a" {
			break
		}
	}
}

func TestGetBean_ConcurrentSingletonRealization(t *testing.T) {
	f := NewBeanFactory()
	require.NoError(t, f.RegisterBeanDefinition("userDao", userDaoDefinition()))

	const workers = 16
	results := make([]any, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.GetBean("userDao")
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	for _, v := range results {
		require.Same(t, results[0], v)
	}
	require.NoError(t, f.DestroySingletons())
	assert.Equal(t, 1, results[0].(*UserDao).destroyed)
}

func TestBeanCreationError_Message(t *testing.T) {
	err := &BeanCreationError{BeanName: "car", Err: ErrInstantiation}
	assert.True(t, strings.HasPrefix(err.Error(), "error creating bean 'car'"))
	assert.ErrorIs(t, err, ErrInstantiation)
}
