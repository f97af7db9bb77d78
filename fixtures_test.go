package beanctx

import (
	"errors"
	"fmt"
)

type UserDao struct {
	users     map[string]string
	destroyed int
}

func (d *UserDao) InitData() {
	d.users = map[string]string{"10001": "bigboss", "10002": "promise"}
}

func (d *UserDao) DestroyData() {
	d.destroyed++
}

func (d *UserDao) QueryUserName(uID string) string { return d.users[uID] }

type UserService struct {
	UID      string `di.property:"uId"`
	Company  string
	Location string
	UserDao  *UserDao
}

func (s *UserService) QueryUserInfo() string {
	return fmt.Sprintf("%s, %s, %s", s.UserDao.QueryUserName(s.UID), s.Company, s.Location)
}

type Car struct {
	Brand string
	Seats int
	trace *[]string
}

func NewCar(brand string) *Car { return &Car{Brand: brand} }

func NewCarWithSeats(brand string, seats int) *Car { return &Car{Brand: brand, Seats: seats} }

func (c *Car) Start() error {
	if c.trace != nil {
		*c.trace = append(*c.trace, "init:"+c.Brand)
	}
	return nil
}

type Person struct {
	Name string
	Age  int
	Car  *Car
}

// lifecycleBean records every callback it receives.
type lifecycleBean struct {
	Name    string
	calls   []string
	failOn  string
	factory *BeanFactory
	ctx     *ApplicationContext
	beanID  string
	journal *[]string
}

func (b *lifecycleBean) record(step string) error {
	b.calls = append(b.calls, step)
	if b.journal != nil {
		*b.journal = append(*b.journal, b.beanID+":"+step)
	}
	if b.failOn == step {
		return errors.New(step + " failed")
	}
	return nil
}

func (b *lifecycleBean) SetBeanName(name string) {
	b.beanID = name
	_ = b.record("name")
}

func (b *lifecycleBean) SetBeanFactory(f *BeanFactory) {
	b.factory = f
	_ = b.record("factory")
}

func (b *lifecycleBean) SetApplicationContext(ctx *ApplicationContext) {
	b.ctx = ctx
	_ = b.record("context")
}

func (b *lifecycleBean) Initialize() error { return b.record("Initialize") }
func (b *lifecycleBean) Setup() error      { return b.record("Setup") }
func (b *lifecycleBean) Destroy() error    { return b.record("Destroy") }
func (b *lifecycleBean) Teardown() error   { return b.record("Teardown") }

// recordingProcessor appends "<tag>.before"/"<tag>.after" to the bean's trace.
type recordingProcessor struct {
	tag string
}

func (p *recordingProcessor) PostProcessBeforeInitialization(bean any, _ string) (any, error) {
	if lb, ok := bean.(*lifecycleBean); ok {
		lb.calls = append(lb.calls, p.tag+".before")
	}
	return bean, nil
}

func (p *recordingProcessor) PostProcessAfterInitialization(bean any, _ string) (any, error) {
	if lb, ok := bean.(*lifecycleBean); ok {
		lb.calls = append(lb.calls, p.tag+".after")
	}
	return bean, nil
}

// journaled returns a lifecycleBean definition that also writes to a shared
// journal, optionally depending on another bean.
func journaled(journal *[]string, dependsOn string) *BeanDefinition {
	def := NewBeanDefinition(TypeOf[lifecycleBean]()).
		WithSetter("journal", func(instance, value any) error {
			instance.(*lifecycleBean).journal = value.(*[]string)
			return nil
		}).
		WithProperty("journal", journal)
	if dependsOn != "" {
		def.WithSetter("dependsOn", func(any, any) error { return nil }).
			WithProperty("dependsOn", Ref(dependsOn))
	}
	return def
}

func userDaoDefinition() *BeanDefinition {
	return NewBeanDefinition(TypeOf[UserDao]()).
		WithInitMethod("InitData").
		WithDestroyMethod("DestroyData")
}

func userServiceDefinition() *BeanDefinition {
	return NewBeanDefinition(TypeOf[UserService]()).
		WithProperty("uId", "10001").
		WithProperty("company", "Tencent").
		WithProperty("location", "Shenzhen").
		WithProperty("userDao", Ref("userDao"))
}
