package service

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/canteen/internal/datamodels/user"
)

var validate = validator.New()

// validateStruct 校验请求结构体，失败统一返回 KindInvalidInput
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace()+" "+fe.Tag())
		}
		return newError(KindInvalidInput, "参数错误: "+strings.Join(fields, ", "), err)
	}
	return newError(KindInvalidInput, "参数错误", err)
}

// Authorizer 角色权限判断，由 auth.Policy 实现
type Authorizer interface {
	Allow(role user.Role, obj, act string) bool
}

func authorize(p Authorizer, actor user.Actor, obj, act string) error {
	if p == nil || !p.Allow(actor.Role, obj, act) {
		return ErrForbidden
	}
	return nil
}
