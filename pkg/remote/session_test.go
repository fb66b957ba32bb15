package remote_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/launchpi/pkg/remote"
	"github.com/sidkik/launchpi/pkg/remote/mocks"
)

func TestStagingPath(t *testing.T) {
	session := &mocks.Session{}
	session.On("Home").Return("/home/pi", nil).Once()

	path, err := remote.StagingPath(session, ".launchpi_projects")
	assert.NoError(t, err)
	assert.Equal(t, "/home/pi/.launchpi_projects", path)

	// Absolute paths don't need the home directory.
	path, err = remote.StagingPath(session, "/opt/launchpi")
	assert.NoError(t, err)
	assert.Equal(t, "/opt/launchpi", path)
	session.AssertExpectations(t)

	session = &mocks.Session{}
	session.On("Home").Return("", assert.AnError)
	_, err = remote.StagingPath(session, ".launchpi_projects")
	assert.Equal(t, assert.AnError, err)
}
