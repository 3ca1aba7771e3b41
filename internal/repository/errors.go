package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	//楽観ロックのversion不一致（同時更新に負けた）
	ErrConflict = errors.New("conflict")

	//一意制約違反（同じキーが先に入った）
	ErrDuplicate = errors.New("duplicate")

	ErrUserNotFound         = errors.New("user not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)
