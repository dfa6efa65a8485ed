package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"docchat-cli/internal/model"
)

var validate = validator.New()

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Password string `json:"password" validate:"required"`
}

var fieldMessages = map[string]string{
	"required": "不能为空",
	"email":    "邮箱格式不正确",
	"max":      "长度超出限制",
}

// Validate 校验登录参数
func (r *LoginRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	return toValidationError(validate.Struct(r))
}

// Validate 校验注册参数
func (r *RegisterRequest) Validate() error {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	return toValidationError(validate.Struct(r))
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		fe := errs[0]
		field := strings.ToLower(fe.Field())
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = "格式不正确"
		}
		return NewValidationError(field, field+" "+msg)
	}
	return NewValidationError("", err.Error())
}

// Login 使用用户名密码登录
func (c *Client) Login(ctx context.Context, req LoginRequest) (*model.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	raw, err := c.Call(ctx, "/auth/login/", RequestOptions{Method: http.MethodPost, Body: req})
	if err != nil {
		return nil, err
	}
	return decode[model.AuthResult](raw, "登录")
}

// Register 注册新用户，成功后直接返回 token
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	raw, err := c.Call(ctx, "/auth/register/", RequestOptions{Method: http.MethodPost, Body: req})
	if err != nil {
		return nil, err
	}
	return decode[model.AuthResult](raw, "注册")
}

// Logout 通知服务端注销当前 token
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Call(ctx, "/auth/logout/", RequestOptions{Method: http.MethodPost})
	return err
}

// CurrentUser 获取当前 token 对应的用户
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	raw, err := c.Call(ctx, "/auth/user/", RequestOptions{})
	if err != nil {
		return nil, err
	}
	return decode[model.User](raw, "用户信息")
}
