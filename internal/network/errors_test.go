package network

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/roomchat/pkg/util/merr"
)

func TestWithStage(t *testing.T) {
	assert.Nil(t, WithStage(StageRecv, nil))

	err := WithStage(StageDecode, merr.WrapErrProtocolMalformedRoom("/x"))
	assert.ErrorIs(t, err, merr.ErrProtocolMalformedRoom)
	assert.Equal(t, merr.KindProtocol, merr.KindOf(err))

	stage, ok := StageOf(errors.Wrap(err, "session 1"))
	assert.True(t, ok)
	assert.Equal(t, StageDecode, stage)
	assert.Contains(t, err.Error(), "network:decode: ")

	_, ok = StageOf(io.EOF)
	assert.False(t, ok)
}
